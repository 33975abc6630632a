package app

import (
	"context"
	"errors"
	"fmt"

	"skill-exchange/internal/changefeed"
	"skill-exchange/internal/config"
	"skill-exchange/internal/database"
	"skill-exchange/internal/database/migration"
	dbpostgres "skill-exchange/internal/database/postgres"
	"skill-exchange/internal/database/seeder"
	"skill-exchange/internal/domain/user"
	"skill-exchange/internal/infrastructure/cache"
	"skill-exchange/internal/infrastructure/persistence/postgres"
	"skill-exchange/internal/infrastructure/pubsub"
	"skill-exchange/internal/pkg/jwt"
	"skill-exchange/internal/repository"
	"skill-exchange/internal/repository/memstore"
	"skill-exchange/internal/usecase"
	"skill-exchange/internal/ws"
	"skill-exchange/migrations"

	"github.com/rs/zerolog"
)

type changeFeed interface {
	changefeed.Feed
	changefeed.Publisher
}

type stores struct {
	skills     repository.SkillRepository
	userSkills repository.UserSkillRepository
	matches    repository.MatchRepository
	users      user.Repository
	provision  user.Provisioner
}

type Container struct {
	Config config.Config
	Log    zerolog.Logger

	// DB is nil with STORE_DRIVER=memory; Memory is nil otherwise.
	DB     database.DB
	Memory *memstore.Store

	Cache  *cache.Redis
	Feed   changeFeed
	Broker *changefeed.Broker

	JWT         jwt.Service
	Provisioner user.Provisioner

	Skills    usecase.SkillUsecase
	Matching  usecase.MatchingUsecase
	Lifecycle usecase.MatchLifecycle
	Writer    usecase.MatchWriter

	Hub *ws.Hub

	closers []func() error
}

func NewContainer(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	st, err := c.openStore(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.Cache = cache.NewRedis(ctx, cfg.Redis, log)
	c.closers = append(c.closers, c.Cache.Close)

	if err := c.openFeed(); err != nil {
		_ = c.Close()
		return nil, err
	}

	timeout := cfg.Store.Timeout
	c.JWT = jwt.NewHMACService(cfg.JWT.AccessSecret, cfg.JWT.Issuer)
	c.Provisioner = st.provision

	skills := usecase.NewSkillUsecase(st.skills, st.userSkills, st.users, c.Cache, log, timeout)
	c.Skills = skills
	c.Writer = usecase.NewMatchWriter(st.matches, c.Feed, log, timeout)
	c.Lifecycle = usecase.NewMatchLifecycle(st.matches, c.Feed, log, timeout)
	c.Matching = usecase.NewMatchingUsecase(skills, st.skills, st.userSkills, st.users, st.matches, c.Writer, c.Cache, log, timeout)

	c.Hub = ws.NewHub(log)

	return c, nil
}

func (c *Container) openStore(ctx context.Context) (stores, error) {
	switch c.Config.Store.Driver {
	case config.StoreDriverMemory:
		mem := memstore.New()
		entries := make(map[string]string, len(seeder.Catalogue))
		for _, it := range seeder.Catalogue {
			entries[it.Name] = it.Category
		}
		n := mem.SeedSkills(entries)
		c.Log.Info().Int("skills", n).Msg("using in-memory store")
		c.Memory = mem

		users := mem.Users()
		return stores{
			skills:     mem.Skills(),
			userSkills: mem.UserSkills(),
			matches:    mem.Matches(),
			users:      users,
			provision:  users,
		}, nil

	case config.StoreDriverPostgres:
		connectCtx := ctx
		if c.Config.Database.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			connectCtx, cancel = context.WithTimeout(ctx, 2*c.Config.Database.ConnectTimeout)
			defer cancel()
		}
		db, err := dbpostgres.Connect(connectCtx, c.Config.Database, c.Log)
		if err != nil {
			return stores{}, fmt.Errorf("connect postgres: %w", err)
		}
		c.DB = db
		c.closers = append(c.closers, db.Close)

		if c.Config.Database.RunMigrations {
			runner := migration.Runner{Dir: c.Config.Database.MigrationsDir, FS: migrations.FS, Log: c.Log}
			if err := runner.Run(ctx, db.SQLDB()); err != nil {
				return stores{}, fmt.Errorf("run migrations: %w", err)
			}
		}
		if c.Config.Database.RunSeeders {
			runner := seeder.Runner{Seeders: seeder.Defaults(), Log: c.Log}
			if err := runner.Run(ctx, db); err != nil {
				return stores{}, fmt.Errorf("run seeders: %w", err)
			}
		}

		users, err := postgres.NewUserRepository(ctx, db)
		if err != nil {
			return stores{}, fmt.Errorf("prepare user repository: %w", err)
		}
		// Statements must close before the pool does.
		c.closers = append(c.closers, users.Close)

		return stores{
			skills:     repository.NewPostgresSkillRepository(db),
			userSkills: repository.NewPostgresUserSkillRepository(db),
			matches:    repository.NewPostgresMatchRepository(db),
			users:      users,
			provision:  users,
		}, nil

	default:
		return stores{}, fmt.Errorf("unknown store driver %q", c.Config.Store.Driver)
	}
}

func (c *Container) openFeed() error {
	switch c.Config.Feed.Driver {
	case config.FeedDriverRedis:
		client := c.Cache.Client()
		if client == nil {
			return errors.New("redis change feed selected but redis is unavailable")
		}
		c.Feed = pubsub.NewRedisFeed(client, c.Config.Feed.Buffer, c.Log)
	default:
		c.Broker = changefeed.NewBroker(c.Config.Feed.Buffer, c.Log)
		c.Feed = c.Broker
		c.closers = append(c.closers, c.Broker.Close)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
