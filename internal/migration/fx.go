package migration

import (
	accountingdomain "github.com/smallbiznis/opsdesk/internal/accounting/domain"
	catalogdomain "github.com/smallbiznis/opsdesk/internal/catalog/domain"
	"github.com/smallbiznis/opsdesk/internal/config"
	customerdomain "github.com/smallbiznis/opsdesk/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/opsdesk/internal/invoice/domain"
	leaddomain "github.com/smallbiznis/opsdesk/internal/lead/domain"
	organizationdomain "github.com/smallbiznis/opsdesk/internal/organization/domain"
	"github.com/smallbiznis/opsdesk/internal/seed"
	staffdomain "github.com/smallbiznis/opsdesk/internal/staff/domain"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql installs are dev or single-host setups;
			// schema drift is acceptable there and AutoMigrate keeps
			// them usable without a second migration path.
			if err := autoMigrate(conn); err != nil {
				return err
			}
		}

		if cfg.DefaultOrgID != 0 {
			return seed.EnsureMainOrgWithID(conn, cfg.DefaultOrgID)
		}
		return seed.EnsureMainOrg(conn)
	}),
)

func autoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&organizationdomain.Organization{},
		&customerdomain.Customer{},
		&leaddomain.Lead{},
		&catalogdomain.ServiceOffering{},
		&staffdomain.StaffMember{},
		&workdomain.Work{},
		&workdomain.RecurringPeriod{},
		&workdomain.PeriodTask{},
		&workdomain.WorkTask{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&accountingdomain.AccountGroup{},
		&accountingdomain.LedgerAccount{},
	)
}
