// Package main provides launch of the whole application: HTTP control surface, capture consumer,
// thumbnail synchronizer and recovery checkpoints in one process around the in-memory collection
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/ScanDesk/internal/collection"
	"github.com/UnendingLoop/ScanDesk/internal/kafka"
	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/UnendingLoop/ScanDesk/internal/mwlogger"
	"github.com/UnendingLoop/ScanDesk/internal/operation"
	"github.com/UnendingLoop/ScanDesk/internal/receiver"
	"github.com/UnendingLoop/ScanDesk/internal/repository"
	"github.com/UnendingLoop/ScanDesk/internal/service"
	"github.com/UnendingLoop/ScanDesk/internal/settings"
	"github.com/UnendingLoop/ScanDesk/internal/storage"
	"github.com/UnendingLoop/ScanDesk/internal/thumbnail"
	"github.com/UnendingLoop/ScanDesk/internal/transport"
	"github.com/UnendingLoop/ScanDesk/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}
	cfg := settings.Load(appConfig)

	// стартуем логгер
	zlog.InitConsole()
	err := zlog.SetLevel("info")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(ctx, cfg.PostgresDSN, 5, 10*time.Second)
	// накатываем миграцию
	repository.MigrateWithRetries(ctx, dbConn.Master, "./migrations", 10, 15*time.Second)

	// подключиться к хранилищу
	strg := storage.NewPageStorage(cfg, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresDeskRepo(dbConn)

	// ждем пока кафка раздуплится
	if !kafka.WaitKafkaReady(ctx, cfg.KafkaBroker, 10*time.Second) {
		log.Fatalln("Interrupted while waiting for Kafka. Exiting app...")
	}
	kafka.InitKafkaTopics(ctx, cfg.KafkaBroker, 10*time.Second,
		kafka.Topic{Name: cfg.CaptureTopic}, // одна партиция - страницы сессии не перемешиваются
		kafka.Topic{Name: cfg.OperationsTopic, Retention: 7 * 24 * time.Hour},
	)
	// продюсер для итогов операций
	pub := wbfkafka.NewProducer([]string{cfg.KafkaBroker}, cfg.OperationsTopic)
	// консьюмер для сканов
	cons := wbfkafka.NewConsumer([]string{cfg.KafkaBroker}, cfg.CaptureTopic, cfg.GroupID)

	// ядро: коллекция, приемники, операции, миниатюры
	coll := collection.New()
	receivers := receiver.New(coll)
	runner := operation.NewRunner(coll, receivers, strg, cfg.OperationWorkers)
	thumbs, err := thumbnail.New(coll, cfg.ThumbnailSize)
	if err != nil {
		log.Fatalf("Failed to init thumbnail synchronizer: %v", err)
	}

	// создаем экземпляр сервиса
	var svc DeskAPIService = service.NewDeskService(cfg, coll, runner, thumbs, repo, pub, strg)
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewDeskHandler(svc)
	// сетапим сервер
	engine := ginext.New(cfg.GinMode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.GET("/records", handlers.List)                      // порядок и трансформации
	engine.GET("/records/:id/thumbnail", handlers.Thumbnail)   // миниатюра записи
	engine.POST("/records/upload", handlers.Upload)            // загрузка страниц одной сессией
	engine.POST("/records/move", handlers.Move)                // сдвиг выделения вверх/вниз
	engine.POST("/records/transform", handlers.Transform)      // поворот/переворот выделения
	engine.POST("/records/reset", handlers.Reset)              // сброс трансформаций
	engine.POST("/records/delete", handlers.Delete)            // удаление выделения
	engine.PUT("/thumbnails/size", handlers.SetThumbnailSize)  // размер миниатюр
	engine.PUT("/thumbnails/selection", handlers.SetSelection) // что рендерить первым
	engine.POST("/operations", handlers.StartOperation)        // фоновая операция
	engine.GET("/operations", handlers.Operations)             // список операций
	engine.GET("/operations/:id", handlers.Operation)          // прогресс и итог
	engine.DELETE("/operations/:id", handlers.CancelOperation) // отмена
	engine.POST("/export", handlers.Export)                    // экспорт страниц в хранилище

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
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

	// миниатюры живут всё время работы процесса
	go func() {
		if err := thumbs.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Thumbnail synchronizer stopped: %v", err)
		}
	}()

	// восстанавливаем коллекцию, потом запускаем чекпоинты и прием сканов
	go func() {
		waitRestore(ctx, svc)

		queue := make(chan kafkago.Message)
		cons.StartConsuming(ctx, queue, retry.Strategy{
			Attempts: 5,
			Delay:    2 * time.Second,
			Backoff:  1.5,
		})
		go func() {
			// воркер встает на странице, которую не удалось сохранить - без коммита она придет снова после рестарта
			if err := worker.NewWorkerInstance(strg, receivers, queue, cons, cfg.CapturePrefix).StartWorker(ctx); err != nil {
				log.Printf("Capture worker stopped: %v", err)
				stop()
			}
		}()

		checkpointLoop(ctx, svc, cfg.CheckpointInterval)
	}()

	// ждем отмены контекста для запуска грейсфул закрытия соединений бд и кафки
	<-ctx.Done()

	runner.CancelAll()
	shutdown(srv, svc, pub, cons, dbConn)
	log.Println("Exiting app...")
}

func waitRestore(ctx context.Context, svc DeskAPIService) {
	op, err := svc.Restore(ctx)
	if err != nil {
		log.Printf("Failed to restore collection from checkpoint: %v", err)
		return
	}
	if op == nil {
		log.Println("No checkpoint to restore")
		return
	}

	select {
	case <-ctx.Done():
	case <-op.Done():
		s := op.Wait()
		log.Printf("Collection restored: %d of %d records, %d failed", s.Succeeded, s.Total, s.Failed)
	}
}

func checkpointLoop(ctx context.Context, svc DeskAPIService, interval time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.Println("Checkpoint loop crashed:", r)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.Checkpoint(context.Background()); err != nil && !errors.Is(err, model.ErrRestoreIncomplete) {
				log.Println("Failed to save checkpoint:", err)
			}
		}
	}
}

func shutdown(srv *http.Server, svc DeskAPIService, pub *wbfkafka.Producer, cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("Failed to stop HTTP-server gracefully:", err)
	}

	// последний чекпоинт перед закрытием базы; недовосстановленный чекпоинт не перезаписываем
	switch err := svc.Checkpoint(shutdownCtx); {
	case errors.Is(err, model.ErrRestoreIncomplete):
		log.Println("Final checkpoint skipped: stored checkpoint was not fully restored")
	case err != nil:
		log.Println("Failed to save final checkpoint:", err)
	}

	// Closing Kafka connections:
	if err := cons.Close(); err != nil {
		log.Println("Failed to close Kafka-reader:", err)
	}
	if err := pub.Close(); err != nil {
		log.Println("Failed to close Kafka-writer:", err)
	}
	log.Println("Kafka connections closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
