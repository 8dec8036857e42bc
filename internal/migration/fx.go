package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	catalogdomain "github.com/flowmarket/flowmarket/internal/catalog/domain"
	"github.com/flowmarket/flowmarket/internal/config"
	copydomain "github.com/flowmarket/flowmarket/internal/copyledger/domain"
	entitlementdomain "github.com/flowmarket/flowmarket/internal/entitlement/domain"
	payoutdomain "github.com/flowmarket/flowmarket/internal/payout/domain"
	transferdomain "github.com/flowmarket/flowmarket/internal/transfer/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite and mysql are local/dev databases; gorm's migrator is
			// enough there and keeps the SQL files postgres-only.
			return conn.AutoMigrate(
				&catalogdomain.Flow{},
				&entitlementdomain.Subscription{},
				&copydomain.CopyEvent{},
				&payoutdomain.PayoutRecord{},
				&transferdomain.PayoutDestination{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
