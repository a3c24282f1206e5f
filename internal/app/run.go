package app

import (
	"context"
	"io"
	"log"
	"os"

	fyneapp "fyne.io/fyne/v2/app"

	"yashubustudio/simmatch/simmatch"
)

const fyneAppID = "yashubustudio.simmatch"

// Run loads the configuration, prepares the embedder and starts the desktop UI.
func Run() error {
	simmatch.LoadDotEnv()
	cfgPath := os.Getenv("SIMMATCH_CONFIG")
	cfg, err := simmatch.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	simmatch.ApplyEnv(&cfg)
	cfg.ApplyDefaults()

	logs := newLogSink(300)
	logger := log.New(io.MultiWriter(os.Stdout, logs), "", log.LstdFlags)

	embedder, err := simmatch.NewEmbedder(context.Background(), cfg.Embedder, logger)
	if err != nil {
		return err
	}
	svc, err := simmatch.NewService(embedder, cfg, logger)
	if err != nil {
		_ = embedder.Close()
		return err
	}
	defer svc.Close()

	a := fyneapp.NewWithID(fyneAppID)
	u := buildUI(a, svc, cfgPath, logs)
	logger.Printf("Embedding model %s ready", embedder.ModelID())
	u.w.ShowAndRun()
	return nil
}
