package main

import (
	"flag"
	"log"

	"github.com/hugohenrick/nfse-emissor/internal/config"
	"github.com/hugohenrick/nfse-emissor/internal/infrastructure/database"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
)

func main() {
	down := flag.Bool("down", false, "desfaz a última migração")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Erro ao carregar configuração: %v", err)
	}

	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("Erro ao criar logger: %v", err)
	}
	defer zl.Sync()

	if *down {
		if err := database.RollbackMigration(cfg.Database); err != nil {
			zl.Error("erro ao desfazer migração", "error", err)
			log.Fatal(err)
		}
		zl.Info("última migração desfeita")
		return
	}

	// Executar as migrações
	if err := database.RunMigrations(cfg.Database, zl); err != nil {
		zl.Error("erro ao executar migrações", "error", err)
		log.Fatal(err)
	}

	status, err := database.CheckSchema(cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	zl.Info("migrações executadas com sucesso", "version", status.Version)
}
