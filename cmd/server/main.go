package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codxp/xptracker/internal/api"
	"github.com/codxp/xptracker/internal/auth"
	"github.com/codxp/xptracker/internal/cache"
	"github.com/codxp/xptracker/internal/config"
	"github.com/codxp/xptracker/internal/logging"
	"github.com/codxp/xptracker/internal/service"
	"github.com/codxp/xptracker/internal/store"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или ENV XP_CONFIG)")
	flag.Parse()

	// Инициализируем систему логирования
	if err := logging.Init("server"); err != nil {
		log.Fatalf("Ошибка инициализации логирования: %v", err)
	}
	defer logging.Close()

	logging.Info("Запуск 2XP token tracker...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("Ошибка чтения конфигурации: %v", err)
		log.Fatalf("Ошибка чтения конфигурации: %v", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	// === ХРАНИЛИЩЕ ===
	accountStore, err := buildStore(cfg)
	if err != nil {
		logging.Error("Ошибка инициализации хранилища: %v", err)
		log.Fatalf("Ошибка инициализации хранилища: %v", err)
	}
	defer accountStore.Close()
	logging.Info("Хранилище аккаунтов: %s", cfg.Storage.GetBackend())

	// Опциональный Redis-кеш поверх хранилища
	if cfg.Cache.Enabled {
		cached, err := cache.NewCachedStore(cache.Config{
			RedisAddr: cfg.Cache.RedisAddr,
			TTL:       time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		}, accountStore)
		if err != nil {
			logging.Error("Ошибка подключения к Redis: %v", err)
			log.Fatalf("Ошибка подключения к Redis: %v", err)
		}
		accountStore = cached
	}

	// === СЕРВИСЫ ===
	tokenService, err := auth.NewTokenService(cfg.Auth.GetJWTSecret())
	if err != nil {
		logging.Error("Ошибка инициализации сервиса токенов: %v", err)
		log.Fatalf("Ошибка инициализации сервиса токенов: %v", err)
	}
	accounts := service.NewAccountService(accountStore, tokenService)

	// === REST API ===
	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	restServer := api.NewRestServer(api.Config{
		Port:     restPort,
		Accounts: accounts,
	})
	if err := restServer.Start(); err != nil {
		logging.Error("Ошибка запуска REST API: %v", err)
		log.Fatalf("Ошибка запуска REST API: %v", err)
	}

	logging.Info("Сервер запущен: http://localhost%s", restPort)
	logging.Info("Health check: http://localhost%s/health", restPort)

	// Ждем сигнала для завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("Получен сигнал %v, завершение работы...", sig)

	if err := restServer.Stop(); err != nil {
		logging.Error("Ошибка остановки REST сервера: %v", err)
	}
	logging.Info("Сервер остановлен")
}

// buildStore выбирает backend хранилища по конфигурации.
func buildStore(cfg *config.Config) (store.AccountStore, error) {
	switch backend := cfg.Storage.GetBackend(); backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "flatfile":
		return store.NewFlatFileStore(cfg.Storage.GetTokensFile()), nil
	case "userfile":
		return store.NewUserFileStore(cfg.Storage.GetDataDir()), nil
	case "mongo":
		return store.NewMongoStore(store.MongoConfig{
			URI:        cfg.Storage.Mongo.GetURI(),
			Database:   cfg.Storage.Mongo.GetDatabase(),
			Collection: cfg.Storage.Mongo.GetCollection(),
		})
	default:
		return nil, fmt.Errorf("неизвестный storage backend: %q", backend)
	}
}
