package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/arbiter/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaults(t *testing.T) {
	Convey("Given no file or environment overrides", t, func() {
		cfg, err := config.Load()

		Convey("Then defaults apply", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.MinFeedbackLength, ShouldEqual, 10)
			So(cfg.RetryPenalties, ShouldResemble, []float64{1.0, 0.8, 0.6})
			So(cfg.DefaultRetryPenalty, ShouldEqual, 0.4)
			So(cfg.TierThresholds["EX"], ShouldResemble, []int{0, 300, 700, 1200, 1800})
			So(cfg.DBDSN, ShouldBeEmpty)
		})
	})
}

func TestEnvOverrides(t *testing.T) {
	Convey("Given environment overrides", t, func() {
		t.Setenv("ARBITER_ADDR", ":7070")
		t.Setenv("ARBITER_LOG_LEVEL", "debug")
		t.Setenv("ARBITER_MIN_FEEDBACK_LENGTH", "25")
		t.Setenv("ARBITER_LEDGER_URL", "http://ledger.internal")

		cfg, err := config.Load()

		Convey("Then env values win over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.MinFeedbackLength, ShouldEqual, 25)
			So(cfg.LedgerURL, ShouldEqual, "http://ledger.internal")
		})
	})
}

func TestFileThenEnvPrecedence(t *testing.T) {
	Convey("Given a YAML file and an env override for the same key", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		yaml := "addr: \":6060\"\noverride_reviewer_id: admin-1\n"
		So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)

		t.Setenv("ARBITER_CONFIG", path)
		t.Setenv("ARBITER_ADDR", ":5050")

		cfg, err := config.Load()

		Convey("Then the env value wins and file-only keys stay", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":5050")
			So(cfg.OverrideReviewerID, ShouldEqual, "admin-1")
		})
	})
}

func TestValidation(t *testing.T) {
	Convey("Given invalid configuration values", t, func() {
		Convey("An unknown database driver is rejected", func() {
			t.Setenv("ARBITER_DB_DSN", "dbname")
			t.Setenv("ARBITER_DB_DRIVER", "oracle")
			_, err := config.Load()
			So(err, ShouldWrap, config.ErrInvalidConfig)
		})

		Convey("A missing config file is reported as a load failure", func() {
			t.Setenv("ARBITER_CONFIG", "/nonexistent/config.yaml")
			_, err := config.Load()
			So(err, ShouldWrap, config.ErrLoadConfig)
		})
	})
}
