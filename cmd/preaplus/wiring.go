package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sesampe/preaplus/extract"
	"github.com/sesampe/preaplus/ficha"
	"github.com/sesampe/preaplus/intake"
	"github.com/sesampe/preaplus/internal/fsstore"
	"github.com/sesampe/preaplus/providers/openai"
	"github.com/sesampe/preaplus/session"
)

func registryFromFlags(cmd *cobra.Command) (*intake.Registry, error) {
	reg := intake.DefaultRegistry()
	path := strings.TrimSpace(flagOrViperString(cmd, "modules-file", "modules_file"))
	if path == "" {
		return reg, nil
	}
	if err := reg.LoadOverrides(path); err != nil {
		return nil, err
	}
	return reg, nil
}

// remoteFromViper builds the model-backed extractor, or nil when no api key
// is configured (rule-based extraction still runs).
func remoteFromViper(logger *slog.Logger) *extract.Remote {
	apiKey := strings.TrimSpace(viper.GetString("llm.api_key"))
	if apiKey == "" {
		return nil
	}
	model := viper.GetString("llm.model")
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := viper.GetDuration("llm.request_timeout")
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := openai.New(viper.GetString("llm.endpoint"), apiKey, model, timeout)
	return &extract.Remote{
		Client:    client,
		Model:     model,
		MaxTokens: viper.GetInt("llm.max_tokens"),
		Logger:    logger,
	}
}

func storeFromFlags(cmd *cobra.Command, logger *slog.Logger) (session.Store, string, error) {
	dir := strings.TrimSpace(flagOrViperString(cmd, "state-dir", "state_dir"))
	if dir == "" {
		return session.NewMemoryStore(0), "", nil
	}
	fs, err := session.NewFileStore(filepath.Join(dir, "sessions"), 0, logger)
	if err != nil {
		return nil, "", err
	}
	return fs, dir, nil
}

// fileRecordSink drops each completed record as one JSON file, where the
// report tooling picks it up.
type fileRecordSink struct {
	dir string
}

func newFileRecordSink(stateDir string) (*fileRecordSink, error) {
	dir := filepath.Join(stateDir, "records")
	if err := fsstore.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("records dir: %w", err)
	}
	return &fileRecordSink{dir: dir}, nil
}

func (s *fileRecordSink) DeliverRecord(_ context.Context, subjectID string, f ficha.Ficha) error {
	path := filepath.Join(s.dir, fsstore.SafeName(subjectID)+".json")
	return fsstore.WriteJSONAtomic(path, f)
}

// logRecordSink is the fallback when no state directory is configured: the
// completed record still shows up somewhere an operator can read it.
type logRecordSink struct {
	logger *slog.Logger
}

func (s *logRecordSink) DeliverRecord(_ context.Context, subjectID string, f ficha.Ficha) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	s.logger.Info("record_completed", "subject", subjectID, "ficha", string(data))
	return nil
}

func sinkFromFlags(stateDir string, logger *slog.Logger) (intake.RecordSink, error) {
	if stateDir == "" {
		return &logRecordSink{logger: logger}, nil
	}
	return newFileRecordSink(stateDir)
}
