package infostorecmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/samber/lo"
	"go.lumeweb.com/infostore/core"
	"go.lumeweb.com/infostore/infostore"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type command struct {
	name string
	args []string
	run  func(ctx context.Context, store core.InfoStorage, out io.Writer, logger *core.Logger) error
}

var commandArgs = map[string]int{
	"prepare": 0,
	"ping":    0,
	"get":     1,
	"remove":  1,
}

func commandUsage() string {
	return "prepare|ping|get <id>|remove <id>"
}

func parseCommand(args []string) (*command, error) {
	if len(args) == 0 {
		return nil, errors.New("missing command")
	}

	name, rest := args[0], args[1:]
	want, ok := commandArgs[name]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", name)
	}
	if len(rest) != want {
		return nil, fmt.Errorf("%s takes %d argument(s), got %d", name, want, len(rest))
	}

	cmd := &command{name: name, args: rest}

	switch name {
	case "prepare":
		cmd.run = runPrepare
	case "ping":
		cmd.run = runPing
	case "get":
		cmd.run = func(ctx context.Context, store core.InfoStorage, out io.Writer, logger *core.Logger) error {
			return runGet(ctx, store, rest[0], out, logger)
		}
	case "remove":
		cmd.run = func(ctx context.Context, store core.InfoStorage, out io.Writer, logger *core.Logger) error {
			return runRemove(ctx, store, rest[0], logger)
		}
	}

	return cmd, nil
}

func runPrepare(ctx context.Context, store core.InfoStorage, _ io.Writer, logger *core.Logger) error {
	if err := store.Prepare(ctx); err != nil {
		return err
	}

	logger.Info("upload info table is ready")
	return nil
}

func runPing(ctx context.Context, store core.InfoStorage, _ io.Writer, logger *core.Logger) error {
	pinger, ok := store.(infostore.Pinger)
	if !ok {
		return errors.New("storage backend does not support ping")
	}

	start := time.Now()
	if err := pinger.Ping(ctx); err != nil {
		return err
	}

	logger.Info("storage reachable", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// infoView is the printed form of an upload record.
type infoView struct {
	ID        string            `yaml:"id"`
	Offset    uint64            `yaml:"offset"`
	Length    *uint64           `yaml:"length"`
	Progress  string            `yaml:"progress"`
	Path      *string           `yaml:"path"`
	CreatedAt string            `yaml:"created_at"`
	Deferred  bool              `yaml:"deferred_size"`
	Partial   bool              `yaml:"is_partial"`
	Final     bool              `yaml:"is_final"`
	Parts     []string          `yaml:"parts,omitempty"`
	Storage   string            `yaml:"storage"`
	Metadata  map[string]string `yaml:"metadata"`
}

func newInfoView(info *core.FileInfo) infoView {
	progress := units.HumanSize(float64(info.Offset))
	if info.Length != nil {
		progress = fmt.Sprintf("%s / %s", progress, units.HumanSize(float64(*info.Length)))
	} else {
		progress += " / deferred"
	}

	return infoView{
		ID:        info.ID,
		Offset:    info.Offset,
		Length:    info.Length,
		Progress:  progress,
		Path:      info.Path,
		CreatedAt: info.CreatedAt.UTC().Format(time.RFC3339Nano),
		Deferred:  info.DeferredSize,
		Partial:   info.IsPartial,
		Final:     info.IsFinal,
		Parts:     info.Parts,
		Storage:   info.Storage,
		Metadata:  info.Metadata,
	}
}

func runGet(ctx context.Context, store core.InfoStorage, id string, out io.Writer, logger *core.Logger) error {
	info, err := store.GetInfo(ctx, id)
	if err != nil {
		return err
	}

	view := newInfoView(info)
	logger.Debug("fetched upload info",
		zap.String("id", id),
		zap.String("progress", view.Progress),
		zap.String("metadata_keys", strings.Join(lo.Keys(info.Metadata), ",")))

	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(view); err != nil {
		return err
	}

	return encoder.Close()
}

func runRemove(ctx context.Context, store core.InfoStorage, id string, logger *core.Logger) error {
	if err := store.RemoveInfo(ctx, id); err != nil {
		return err
	}

	logger.Info("removed upload info", zap.String("id", id))
	return nil
}
