// Package main (in api-subfolder) launches the HTTP API together with its raster processor
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/appconfig"
	"github.com/UnendingLoop/BgRemover/internal/bridge"
	"github.com/UnendingLoop/BgRemover/internal/mwlogger"
	"github.com/UnendingLoop/BgRemover/internal/repository"
	"github.com/UnendingLoop/BgRemover/internal/service"
	"github.com/UnendingLoop/BgRemover/internal/source"
	"github.com/UnendingLoop/BgRemover/internal/storage"
	"github.com/UnendingLoop/BgRemover/internal/storage/localstorage"
	"github.com/UnendingLoop/BgRemover/internal/transport"
	"github.com/robfig/cron/v3"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig, err := appconfig.Load("./.env")
	if err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	if err := appconfig.InitLogger(appConfig); err != nil {
		log.Fatal(err)
	}

	// контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключиться к базе и накатить миграции
	dbConn, err := repository.ConnectWithRetries(ctx, appConfig.GetString("POSTGRES_DSN"), 5, 10*time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v\nExiting app...", err)
	}
	if err := repository.MigrateWithRetries(ctx, dbConn.Master, "./migrations", 10, 15*time.Second); err != nil {
		log.Fatalf("Failed to migrate DB: %v\nExiting app...", err)
	}
	repo := repository.NewPostgresRemovalRepo(dbConn)

	// хранилища результатов и загрузок
	results, err := storage.NewResultStore(ctx, appConfig, 10*time.Second)
	if err != nil {
		log.Fatalf("Failed to init result storage: %v", err)
	}
	uploads, err := localstorage.New(appConfig.GetString("UPLOAD_DIR"))
	if err != nil {
		log.Fatalf("Failed to init upload storage: %v", err)
	}

	// по HTTP читаем только загрузки, доп. каталоги и разрешенные хосты
	loader := source.NewLoader(appConfig.GetDuration("SOURCE_FETCH_TIMEOUT"),
		source.WithLocalRoots(append([]string{uploads.Dir()}, splitList(appConfig.GetString("SOURCE_ROOTS"))...)...),
		source.WithAllowedHosts(splitList(appConfig.GetString("SOURCE_ALLOWED_HOSTS"))...),
	)

	// оркестратор и процессор
	timeout := appConfig.GetDuration("REMOVAL_TIMEOUT")
	br := bridge.New(
		loader,
		results,
		bridge.WithTimeout(timeout),
		bridge.WithLogger(zlog.Logger),
	)
	proc, err := mountProcessor(ctx, appConfig, br)
	if err != nil {
		log.Fatalf("Failed to start raster processor: %v", err)
	}
	go registerWhenReady(ctx, br, proc)

	var svc RemovalAPIService = service.NewRemovalService(repo, br, results, uploads, loader, appConfig.GetFloat64("DEFAULT_TOLERANCE"), 2*timeout)

	// сетапим сервер
	handlers := transport.NewRemovalHandler(svc)
	engine := ginext.New(appConfig.GetString("GIN_MODE"))

	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/removals", handlers.Create)        // удаление фона по ссылке/пути
	engine.POST("/removals/upload", handlers.Upload) // удаление фона для загруженного файла
	engine.GET("/removals", handlers.GetAll)         // история с пагинацией и сортировкой
	engine.GET("/removals/:id", handlers.Get)
	engine.GET("/removals/:id/result", handlers.LoadResult)
	engine.GET("/removals/:id/thumbnail", handlers.LoadThumbnail)
	engine.DELETE("/removals/:id", handlers.Delete)

	srv := &http.Server{
		Addr:    ":" + appConfig.GetString("APP_PORT"),
		Handler: mwlogger.NewMWLogger(engine),
	}

	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// раз в минуту закрываем зависшие записи
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 1m", func() { svc.FailStale(ctx, 20) }); err != nil {
		log.Fatalf("Failed to schedule stale-removal sweep: %v", err)
	}
	sweeper.Start()

	<-ctx.Done()

	shutdown(srv, sweeper, br, proc, dbConn)
	log.Println("Exiting api...")
}

// splitList parses a comma-separated env value
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func shutdown(srv *http.Server, sweeper *cron.Cron, br *bridge.Bridge, proc *mountedProcessor, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Println("Failed to shutdown HTTP-server correctly:", err)
	}

	<-sweeper.Stop().Done()
	log.Println("Sweeper stopped.")

	br.Unregister()
	proc.close()
	log.Println("Raster processor stopped.")

	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
