package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/rokstats/rokstats/config"
)

var configEnvVars = []string{
	config.EnvConfigFile,
	"ROKSTATS_HTTP__ADDR",
	"ROKSTATS_ENGINE__MAX_PAGE_SIZE",
	"ROKSTATS_ENGINE__SEARCH_MIN_LENGTH",
	"ROKSTATS_CACHE__ENABLED",
	"ROKSTATS_CACHE__TTL",
	"ROKSTATS_HTTP__ALLOWED_ORIGINS",
	"ROKSTATS_ENGINE__DEFAULT_SORT_KEY",
	"DATABASE_URL",
	"REDIS_URL",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rokstats.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load()

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HTTP.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Engine.MinPlayerIDLength, convey.ShouldEqual, 8)
				convey.So(cfg.Engine.MinKingdomIDLength, convey.ShouldEqual, 1)
				convey.So(cfg.Engine.SearchMinLength, convey.ShouldEqual, 3)
				convey.So(cfg.Engine.DefaultSortKey, convey.ShouldEqual, "power")
				convey.So(cfg.Engine.Scores["dkp"]["deads"], convey.ShouldEqual, int64(80))
				convey.So(cfg.Cache.Enabled, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ROKSTATS_HTTP__ADDR", ":9999")
			_ = os.Setenv("ROKSTATS_ENGINE__MAX_PAGE_SIZE", "50")
			_ = os.Setenv("ROKSTATS_CACHE__ENABLED", "true")
			_ = os.Setenv("ROKSTATS_CACHE__TTL", "90s")
			_ = os.Setenv("DATABASE_URL", "postgres://u:p@db:5432/stats")

			cfg, err := config.Load()

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HTTP.Addr, convey.ShouldEqual, ":9999")
				convey.So(cfg.Engine.MaxPageSize, convey.ShouldEqual, 50)
				convey.So(cfg.Cache.Enabled, convey.ShouldBeTrue)
				convey.So(cfg.Cache.TTL, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.Database.URL, convey.ShouldEqual, "postgres://u:p@db:5432/stats")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeTempConfig(t, `
http:
  addr: ":7070"
engine:
  default_sort_key: kvk
  scores:
    kvk:
      t5_kills: 40
      deads: 100
`)
			_ = os.Setenv(config.EnvConfigFile, path)

			cfg, err := config.Load()

			convey.Convey("Then it should merge the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HTTP.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Engine.Scores["kvk"]["t5_kills"], convey.ShouldEqual, int64(40))
				convey.So(cfg.Engine.Scores, convey.ShouldContainKey, "dkp")
				convey.So(cfg.Engine.DefaultSortKey, convey.ShouldEqual, "kvk")

				opts, err := cfg.EngineOptions()
				convey.So(err, convey.ShouldBeNil)
				convey.So(opts, convey.ShouldNotBeEmpty)
			})

			convey.Convey("And env vars should win over the file", func() {
				_ = os.Setenv("ROKSTATS_HTTP__ADDR", ":6060")

				cfg, err := config.Load()
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HTTP.Addr, convey.ShouldEqual, ":6060")
			})
		})

		convey.Convey("When the configuration is invalid", func() {
			convey.Convey("An unknown default sort key is rejected", func() {
				_ = os.Setenv("ROKSTATS_ENGINE__DEFAULT_SORT_KEY", "charisma")

				_, err := config.Load()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "default_sort_key")
			})

			convey.Convey("A zero search length is rejected", func() {
				_ = os.Setenv("ROKSTATS_ENGINE__SEARCH_MIN_LENGTH", "0")

				_, err := config.Load()
				convey.So(err, convey.ShouldNotBeNil)
			})

			convey.Convey("A missing file is reported", func() {
				_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
