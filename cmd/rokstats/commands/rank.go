package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rokstats/rokstats/config"
	"github.com/rokstats/rokstats/internal/application/command"
	"github.com/rokstats/rokstats/internal/application/query"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
	"github.com/rokstats/rokstats/internal/infrastructure/persistence/memory"
	"github.com/rokstats/rokstats/internal/infrastructure/persistence/postgres"
	"github.com/rokstats/rokstats/internal/interface/presenter"
	"github.com/rokstats/rokstats/pkg/logger"
)

type rankOptions struct {
	kind      string
	group     string
	sortKey   string
	direction string
	start     string
	end       string
	search    string
	page      int
	pageSize  int
	compact   bool
	dashboard bool
	input     string
}

// NewRankCommand creates the rank command.
func NewRankCommand(configPath *string) *cobra.Command {
	var opts rankOptions

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Print a ranking table",
		Long: `Rank players of one kingdom, or all kingdoms, by a counter (power),
a gain over the window (delta_t4_kills) or a score (dkp).

Snapshots are read from the database, or from a JSON file given with --input.`,
		Example: `  rokstats rank --group 1001 --sort dkp --start 2024-03-01 --end 2024-03-31
  rokstats rank --kind kingdom --sort delta_power --compact
  rokstats rank --input snapshots.json --group 1001 --dashboard`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runRank(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.kind, "kind", "k", "player", "entity kind: player or kingdom")
	f.StringVarP(&opts.group, "group", "g", "", "kingdom id whose players are ranked")
	f.StringVarP(&opts.sortKey, "sort", "s", "", "metric, delta_<metric> or score name")
	f.StringVar(&opts.direction, "dir", "desc", "sort direction: asc or desc")
	f.StringVar(&opts.start, "start", "", "window start (RFC 3339 or YYYY-MM-DD)")
	f.StringVar(&opts.end, "end", "", "window end (RFC 3339 or YYYY-MM-DD)")
	f.StringVarP(&opts.search, "query", "q", "", "entity id or name fragment")
	f.IntVar(&opts.page, "page", 1, "page number")
	f.IntVar(&opts.pageSize, "page-size", 0, "entities per page (0 uses the configured default)")
	f.BoolVar(&opts.compact, "compact", false, "render counters as 1.2B")
	f.BoolVar(&opts.dashboard, "dashboard", false, "also print the group dashboard")
	f.StringVarP(&opts.input, "input", "i", "", "read snapshots from a JSON file instead of the database")

	return cmd
}

func runRank(ctx context.Context, out io.Writer, cfg *config.Config, opts rankOptions) error {
	log := newLogger(cfg)

	kind, err := snapshot.ParseKind(opts.kind)
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	var repo snapshot.Repository
	if opts.input != "" {
		mem, err := loadSnapshotFile(ctx, opts.input)
		if err != nil {
			return err
		}
		log.Debug("snapshots loaded", logger.String("file", opts.input), logger.Int("count", mem.Len()))
		repo = mem
	} else {
		conn, err := connectDatabase(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer conn.Close()
		repo = postgres.NewSnapshotRepository(conn)
	}

	deps := query.Dependencies{Snapshots: repo, Engine: engine, Logger: log}

	if kind == snapshot.KindPlayer && strings.TrimSpace(opts.group) == "" {
		groups, err := query.NewListGroupsHandler(deps).Handle(ctx, query.ListGroupsQuery{Kind: kind})
		if err != nil {
			return err
		}
		if len(groups.Groups) == 0 {
			return fmt.Errorf("no player snapshots stored")
		}
		return fmt.Errorf("--group is required to rank players; known kingdoms: %s", strings.Join(groups.Groups, ", "))
	}

	ranked, err := query.NewRankEntitiesHandler(deps).Handle(ctx, query.RankEntitiesQuery{
		Kind:      kind,
		Group:     opts.group,
		Start:     opts.start,
		End:       opts.end,
		SortKey:   opts.sortKey,
		Direction: opts.direction,
		Search:    opts.search,
		Page:      opts.page,
		PageSize:  opts.pageSize,
	})
	if err != nil {
		return err
	}

	tableOpts := presenter.TableOptions{Compact: opts.compact}
	fmt.Fprintln(out, presenter.RankingTable(ranked, tableOpts))

	if opts.dashboard {
		defaultMetric, _ := snapshot.ParseMetric(cfg.Engine.DefaultMetric)
		sum, err := query.NewGetGroupDashboardHandler(deps, defaultMetric).Handle(ctx, query.GetGroupDashboardQuery{
			Kind:  kind,
			Group: opts.group,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, presenter.DashboardTable(sum, tableOpts))
	}

	return nil
}

// loadSnapshotFile reads a JSON array of snapshots, or an object with a
// "snapshots" array, into an in-memory store.
func loadSnapshotFile(ctx context.Context, path string) (*memory.SnapshotRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}

	var inputs []command.SnapshotInput
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Snapshots []command.SnapshotInput `json:"snapshots"`
		}
		err = json.Unmarshal(trimmed, &wrapped)
		inputs = wrapped.Snapshots
	} else {
		err = json.Unmarshal(trimmed, &inputs)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	repo := memory.NewSnapshotRepository()
	if _, err := command.NewAppendSnapshotsHandler(repo, nil, nil).Handle(ctx, command.AppendSnapshotsCommand{
		Snapshots: inputs,
	}); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return repo, nil
}
