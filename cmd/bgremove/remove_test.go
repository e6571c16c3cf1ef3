package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writePhoto(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			c := color.NRGBA{R: 250, G: 250, B: 250, A: 255}
			if x >= 10 && x < 30 && y >= 10 && y < 20 {
				c = color.NRGBA{R: 180, G: 20, B: 30, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(dir, "item.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func testOptions(out string) RemoveOptions {
	return RemoveOptions{
		Tolerance:    50,
		OutDir:       out,
		Timeout:      5 * time.Second,
		MaxSide:      1024,
		FetchTimeout: time.Second,
	}
}

func TestRunRemove(t *testing.T) {
	src := t.TempDir()
	outDir := t.TempDir()
	photo := writePhoto(t, src)

	var buf bytes.Buffer
	err := runRemove(context.Background(), &buf, []string{photo}, testOptions(outDir))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	require.Equal(t, ".png", filepath.Ext(lines[0]))

	f, err := os.Open(lines[0])
	require.NoError(t, err)
	defer f.Close()
	res, err := png.Decode(f)
	require.NoError(t, err)
	require.Equal(t, 40, res.Bounds().Dx())

	_, _, _, a := res.At(0, 0).RGBA()
	require.Zero(t, a)
	_, _, _, a = res.At(20, 15).RGBA()
	require.NotZero(t, a)
}

func TestRunRemoveMixedInputs(t *testing.T) {
	src := t.TempDir()
	photo := writePhoto(t, src)

	var buf bytes.Buffer
	err := runRemove(context.Background(), &buf, []string{filepath.Join(src, "missing.png"), photo}, testOptions(t.TempDir()))
	require.Error(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "-", lines[0])
	require.Equal(t, ".png", filepath.Ext(lines[1]))
}

func TestRunRemoveInvalidTolerance(t *testing.T) {
	photo := writePhoto(t, t.TempDir())
	opts := testOptions(t.TempDir())
	opts.Tolerance = -1

	var buf bytes.Buffer
	err := runRemove(context.Background(), &buf, []string{photo}, opts)
	require.Error(t, err)
	require.Equal(t, "-\n", buf.String())
}

func TestRemoveCommandNeedsInput(t *testing.T) {
	rootCmd.SetArgs([]string{"remove"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	require.Error(t, rootCmd.Execute())
}
