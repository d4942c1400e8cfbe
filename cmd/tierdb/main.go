// Package main provides the tierdb CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/orneryd/tierdb/pkg/config"
	"github.com/orneryd/tierdb/pkg/coordinator"
	"github.com/orneryd/tierdb/pkg/logging"
	"github.com/orneryd/tierdb/pkg/models"
	"github.com/orneryd/tierdb/pkg/observability"
	"github.com/orneryd/tierdb/pkg/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

const configFileName = "tierdb.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	dataDir    string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "tierdb",
		Short: "tierdb - tiered memory store for conversational agents",
		Long: `tierdb keeps agent memory in badger stores split by data type and
temperature tier.

Features:
  • Hot tiers opened eagerly, warm and cold tiers on first use
  • Quarterly conversation and embedding archives
  • Structural, graph and adaptive vector indexes
  • Background promotion of aging messages and stable entities`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (default <data-dir>/tierdb.yaml when present)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "Root of the tier tree (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tierdb v%s (%s)\n", version, commit)
		},
	})
	root.AddCommand(
		a.initCmd(),
		a.statsCmd(),
		a.putMessageCmd(),
		a.getMessageCmd(),
		a.putEmbeddingCmd(),
		a.searchCmd(),
		a.promoteCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	path := a.configPath
	if path == "" && a.dataDir != "" {
		if candidate := filepath.Join(a.dataDir, configFileName); fileExists(candidate) {
			path = candidate
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.dataDir != "" {
		cfg.Storage.BaseDir = a.dataDir
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg.Memory.ApplyRuntimeMemory()

	log, err := logging.New(logging.Options{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) {
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) baseDir() string {
	if a.cfg.Storage.BaseDir != "" {
		return a.cfg.Storage.BaseDir
	}
	return storage.DefaultBasePath()
}

func (a *app) open() (*coordinator.Coordinator, error) {
	opts, err := coordinatorOptions(a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	opts.BasePath = a.baseDir()
	c, err := coordinator.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening tierdb: %w", err)
	}
	return c, nil
}

// withCoordinator opens the coordinator for the duration of fn.
func (a *app) withCoordinator(fn func(*coordinator.Coordinator) error) (err error) {
	c, err := a.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing tierdb: %w", cerr)
		}
	}()
	return fn(c)
}

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the tier tree and a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			base := a.baseDir()
			if err := os.MkdirAll(base, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", base, err)
			}

			configPath := filepath.Join(base, configFileName)
			if !fileExists(configPath) {
				cfg := *a.cfg
				cfg.Storage.BaseDir = base
				cfg.Storage.EncryptionPassphrase = ""
				data, err := yaml.Marshal(&cfg)
				if err != nil {
					return fmt.Errorf("encoding config: %w", err)
				}
				header := []byte("# tierdb configuration\n")
				if err := os.WriteFile(configPath, append(header, data...), 0o644); err != nil {
					return fmt.Errorf("writing config: %w", err)
				}
			}

			err := a.withCoordinator(func(c *coordinator.Coordinator) error {
				fmt.Fprintf(out, "Initialized tierdb in %s\n", base)
				fmt.Fprintf(out, "  Config:    %s\n", configPath)
				fmt.Fprintf(out, "  Hot tiers: %d\n", len(c.HotTiers()))
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  tierdb put-message --data-dir", base, "--chat chat_1 --text hello")
			fmt.Fprintln(out, "  tierdb serve --data-dir", base)
			return nil
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-tier record counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCoordinator(func(c *coordinator.Coordinator) error {
				st, err := c.Stats()
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TIER\tNODES\tEDGES\tEMBEDDINGS\tVECTORS")
				for _, name := range slices.Sorted(maps.Keys(st.Tiers)) {
					s := st.Tiers[name]
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", name, s.Nodes, s.Edges, s.Embeddings, s.Vectors)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				if qs := c.ArchiveQuarters(); len(qs) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Archives: %s\n", strings.Join(qs, ", "))
				}
				return nil
			})
		},
	}
}

func (a *app) putMessageCmd() *cobra.Command {
	var id, chat, sender, text, at string
	cmd := &cobra.Command{
		Use:   "put-message",
		Short: "Store a message in conversations/active",
		RunE: func(cmd *cobra.Command, args []string) error {
			ts := time.Now()
			if at != "" {
				var err error
				if ts, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}
			msgID := models.NodeID(id)
			if msgID == "" {
				msgID = models.NewNodeID("msg")
			}
			msg := &models.Message{
				NodeID:      msgID,
				ChatID:      models.NodeID(chat),
				Sender:      sender,
				Timestamp:   ts.UnixMilli(),
				TextContent: text,
			}
			return a.withCoordinator(func(c *coordinator.Coordinator) error {
				if err := c.InsertMessage(msg); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msgID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Message ID (default msg_<uuid>)")
	cmd.Flags().StringVar(&chat, "chat", "", "Chat ID")
	cmd.Flags().StringVar(&sender, "sender", "user", "Sender")
	cmd.Flags().StringVar(&text, "text", "", "Message text")
	cmd.Flags().StringVar(&at, "at", "", "Timestamp, RFC 3339 (default now)")
	_ = cmd.MarkFlagRequired("chat")
	return cmd
}

func (a *app) getMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-message [id]",
		Short: "Print a message and the tier holding it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := models.NodeID(args[0])
			return a.withCoordinator(func(c *coordinator.Coordinator) error {
				msg, err := c.GetMessage(id)
				if err != nil {
					return err
				}
				if msg == nil {
					return fmt.Errorf("message %s: %w", id, storage.ErrNotFound)
				}
				tier, quarter, err := c.TierOf(id)
				if err != nil {
					return err
				}
				where := tier.Name()
				if quarter != "" {
					where += "/" + quarter
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "tier: %s\n", where)
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(msg)
			})
		},
	}
}

func (a *app) putEmbeddingCmd() *cobra.Command {
	var id, vec, model string
	cmd := &cobra.Command{
		Use:   "put-embedding",
		Short: "Store an embedding in embeddings/active",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseVector(vec)
			if err != nil {
				return err
			}
			embID := models.EmbeddingID(id)
			if embID == "" {
				embID = models.NewEmbeddingID("emb")
			}
			return a.withCoordinator(func(c *coordinator.Coordinator) error {
				if err := c.InsertEmbedding(&models.Embedding{ID: embID, Vector: v, Model: model}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), embID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Embedding ID (default emb_<uuid>)")
	cmd.Flags().StringVar(&vec, "vector", "", "Comma-separated components")
	cmd.Flags().StringVar(&model, "model", "", "Model that produced the vector")
	_ = cmd.MarkFlagRequired("vector")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var vec string
	var k int
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find the embeddings nearest to a vector",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseVector(vec)
			if err != nil {
				return err
			}
			return a.withCoordinator(func(c *coordinator.Coordinator) error {
				res, err := c.SearchEmbeddings(q, k)
				if err != nil {
					return err
				}
				for _, r := range res {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.4f\n", r.ID, r.Score)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&vec, "vector", "", "Comma-separated query components")
	cmd.Flags().IntVarP(&k, "limit", "k", 10, "Number of results")
	_ = cmd.MarkFlagRequired("vector")
	return cmd
}

func (a *app) promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote",
		Short: "Run one maintenance pass: promote, archive and score",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCoordinator(func(c *coordinator.Coordinator) error {
				res, err := c.Sweep(cmd.Context(), time.Now())
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "promoted: %d\n", res.Promoted)
				fmt.Fprintf(out, "archived: %d\n", res.Archived)
				fmt.Fprintf(out, "entities promoted: %d\n", res.EntitiesPromoted)
				fmt.Fprintf(out, "active: %d (avg score %.2f, archivable %d)\n",
					res.Active.Total, res.Active.AvgScore, res.Active.Archivable)
				return err
			})
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run background maintenance and serve Prometheus metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.withCoordinator(func(c *coordinator.Coordinator) error {
				return a.serve(ctx, c, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "metrics-addr", ":9464", "Address of the /metrics endpoint")
	return cmd
}

func (a *app) serve(ctx context.Context, c *coordinator.Coordinator, addr string) error {
	if a.cfg.Tiers.MaintenanceEnabled {
		c.StartMaintenance()
		defer c.StopMaintenance()
	}

	if !a.cfg.Metrics.Enabled {
		a.log.Info("tierdb running", zap.Bool("metrics", false))
		<-ctx.Done()
		return nil
	}

	col := observability.NewCollectorWithLogger(a.cfg.Metrics.Namespace, c, a.log)
	if err := col.RegisterTiers(c.HotTiers()); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", col.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stopping metrics server: %w", err)
	}
	a.log.Info("tierdb stopped")
	return nil
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	if len(out) == 0 {
		return nil, errors.New("empty vector")
	}
	return out, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
