package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/pkg/errors"

	"sproutDB/bitcask"
	"sproutDB/config"
	"sproutDB/logger"
	"sproutDB/server"
	"sproutDB/sql/catalog"
	"sproutDB/storage"
	"sproutDB/txn"
)

func main() {
	configFile := flag.String("config", "config/db.yaml", "Configuration file path")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintln(os.Stderr, "sproutdb:", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}

	root := "."
	if configFile != "" {
		root = filepath.Dir(configFile)
	}
	dataDir := cfg.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(root, dataDir)
	}

	if err := logger.InitLogger(strconv.FormatUint(cfg.ID, 10), cfg.LogLevel, dataDir); err != nil {
		return err
	}
	defer logger.Sync()

	engine, err := openStorage(cfg, dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Errorf("close storage: %v", err)
		}
	}()

	manager := txn.NewManager(engine)
	if err := manager.Recover(); err != nil {
		return err
	}
	c, err := catalog.NewCatalog(manager, cfg.DefaultDatabase)
	if err != nil {
		return err
	}

	ser := server.NewServer(manager, c)
	if err := ser.Listen(cfg.ListenSQL); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		logger.Infof("received %s, shutting down", sig)
		if err := ser.Close(); err != nil {
			logger.Errorf("close server: %v", err)
		}
	}()

	return ser.Serve()
}

func openStorage(cfg *config.Config, dataDir string) (storage.Engine, error) {
	switch cfg.StorageSQL {
	case config.StorageBitcask:
		path := filepath.Join(dataDir, "sql")
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return nil, errors.Wrap(err, "create data directory")
		}
		engine, err := bitcask.OpenCompact(path, cfg.CompactThresh)
		if err != nil {
			return nil, err
		}
		logger.Infof("opened bitcask storage %s", engine.FileName())
		return engine, nil
	case config.StorageMemory:
		logger.Warnf("using in-memory storage, nothing survives a restart")
		return storage.NewMemory(), nil
	}
	return nil, errors.Errorf("unknown sql storage engine %s", cfg.StorageSQL)
}
