package sourcedb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"vnexim/mavach/internal/core/declaration"
	"vnexim/mavach/internal/infrastructure/config"
	"vnexim/mavach/internal/infrastructure/resilience"
)

// Connector reads declarations from the external ECUS5 database. The database
// is never written to. Connections come from the database/sql pool, which
// hands each operation its own healthy connection (probed and recreated
// transparently), with a per-operation busy timeout.
type Connector struct {
	db          *sql.DB
	busyTimeout time.Duration
	log         *slog.Logger
}

// Open connects to the source database and verifies the connection.
func Open(ctx context.Context, cfg config.SourceSettings, log *slog.Logger) (*Connector, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s connect_timeout=%d",
		cfg.Server, cfg.Port, cfg.Database, cfg.User, cfg.Password,
		int(cfg.ConnectTimeout.Seconds()),
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, resilience.NewError(resilience.KindConfiguration, fmt.Errorf("open source database: %w", err))
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLife)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, resilience.NewError(resilience.KindDatabase, fmt.Errorf("ping source database: %w", err))
	}

	return New(db, cfg.BusyTimeout, log), nil
}

// New wraps an existing handle; used by Open and by tests.
func New(db *sql.DB, busyTimeout time.Duration, log *slog.Logger) *Connector {
	if busyTimeout <= 0 {
		busyTimeout = 30 * time.Second
	}
	return &Connector{db: db, busyTimeout: busyTimeout, log: log}
}

// Test probes the connection with SELECT 1.
func (c *Connector) Test(ctx context.Context) bool {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	var one int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		c.log.Warn("source database probe failed", "error", err)
		return false
	}
	return one == 1
}

const declarationColumns = `so_to_khai, ma_doanh_nghiep, ngay_dang_ky, ma_hai_quan,
	ma_ptvc, phan_luong, trang_thai, mo_ta_hang, so_hoa_don, so_van_don`

// GetDeclarations returns declarations registered in [from, to], optionally
// restricted to the given tax codes, ordered by registration time.
func (c *Connector) GetDeclarations(ctx context.Context, from, to time.Time, taxCodes []string) ([]declaration.Declaration, error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	query := `SELECT ` + declarationColumns + `
		FROM dtokhaimd
		WHERE ngay_dang_ky >= $1 AND ngay_dang_ky <= $2`
	args := []any{from, to}

	if len(taxCodes) > 0 {
		placeholders := make([]string, len(taxCodes))
		for i, code := range taxCodes {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, code)
		}
		query += " AND ma_doanh_nghiep IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY ngay_dang_ky ASC"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, resilience.NewError(resilience.KindDatabase, fmt.Errorf("query declarations: %w", err))
	}
	defer rows.Close()

	var declarations []declaration.Declaration
	for rows.Next() {
		var d declaration.Declaration
		var goodsDesc, invoice, billOfLading sql.NullString
		if err := rows.Scan(
			&d.Number, &d.TaxCode, &d.Date, &d.CustomsOfficeCode,
			&d.TransportMethod, (*string)(&d.Channel), &d.Status,
			&goodsDesc, &invoice, &billOfLading,
		); err != nil {
			return nil, resilience.NewError(resilience.KindDatabase, fmt.Errorf("scan declaration: %w", err))
		}
		d.GoodsDescription = goodsDesc.String
		d.InvoiceNumber = invoice.String
		d.BillOfLading = billOfLading.String
		declarations = append(declarations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, resilience.NewError(resilience.KindDatabase, fmt.Errorf("iterate declarations: %w", err))
	}

	c.log.Debug("loaded declarations from source", "count", len(declarations), "from", from, "to", to)
	return declarations, nil
}

// GetCompanyName looks up the registered company name for a tax code.
// Returns ("", nil) when the tax code is unknown.
func (c *Connector) GetCompanyName(ctx context.Context, taxCode string) (string, error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	var name string
	err := c.db.QueryRowContext(ctx,
		"SELECT ten_doanh_nghiep FROM ddoanhnghiep WHERE ma_doanh_nghiep = $1", taxCode,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", resilience.NewError(resilience.KindDatabase, fmt.Errorf("query company name: %w", err))
	}
	return name, nil
}

// GetClearanceStatus returns the clearance status of one declaration, or
// ("", nil) when the declaration is unknown.
func (c *Connector) GetClearanceStatus(ctx context.Context, declarationNumber, taxCode string) (string, error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	var status string
	err := c.db.QueryRowContext(ctx,
		"SELECT trang_thai FROM dtokhaimd WHERE so_to_khai = $1 AND ma_doanh_nghiep = $2",
		declarationNumber, taxCode,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", resilience.NewError(resilience.KindDatabase, fmt.Errorf("query clearance status: %w", err))
	}
	return status, nil
}

// Close closes the connection pool.
func (c *Connector) Close() error {
	return c.db.Close()
}

func (c *Connector) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.busyTimeout)
}
