package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmanzanog/instrument-registry/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/sijms/go-ora/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB returns a migrated store. SQLite runs by default; set TEST_DB
// to postgres or oracle to run the same tests against a container.
func setupTestDB(t *testing.T) *DB {
	switch os.Getenv("TEST_DB") {
	case "oracle":
		return setupOracle(t)
	case "postgres":
		return setupPostgres(t)
	default:
		return setupSQLite(t)
	}
}

func setupSQLite(t *testing.T) *DB {
	ctx := context.Background()
	rawDB, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "registry.db")+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open db: %s", err)
	}
	rawDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = rawDB.Close()
	})

	db := New(rawDB, &SQLiteDialect{})
	if err := db.Dialect.Migrate(ctx, rawDB); err != nil {
		t.Fatalf("failed to migrate: %s", err)
	}
	return db
}

func setupPostgres(t *testing.T) *DB {
	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %s", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}

	rawDB, err := sql.Open("pgx", connStr)
	if err != nil {
		t.Fatalf("failed to open db: %s", err)
	}

	db := New(rawDB, &PostgresDialect{})
	if err := db.Dialect.Migrate(ctx, rawDB); err != nil {
		t.Fatalf("failed to migrate: %s", err)
	}
	return db
}

func setupOracle(t *testing.T) *DB {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "gvenzl/oracle-free:23.3-slim-faststart",
		ExposedPorts: []string{"1521/tcp"},
		Env:          map[string]string{"ORACLE_PASSWORD": "password"},
		WaitingFor:   wait.ForLog("DATABASE IS READY TO USE").WithStartupTimeout(120 * time.Second),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start oracle container: %s", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	port, err := c.MappedPort(ctx, "1521")
	if err != nil {
		t.Fatalf("failed to get port: %v", err)
	}
	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get host: %v", err)
	}

	dsn := fmt.Sprintf("oracle://system:password@%s:%s/FREE", host, port.Port())
	rawDB, err := sql.Open("oracle", dsn)
	if err != nil {
		t.Fatalf("failed to open db: %s", err)
	}

	db := New(rawDB, &OracleDialect{})
	if err := db.Dialect.Migrate(ctx, rawDB); err != nil {
		t.Fatalf("failed to migrate: %s", err)
	}
	return db
}

func apple() domain.Instrument {
	inst := domain.NewInstrument("AAPL", "Apple Inc.", domain.InstrumentTypeEquity, domain.CurrencyUSD, domain.CurrencyUSD)
	price := domain.MustDecimal("150.25")
	inst.LastPrice = &price
	return inst
}

func strPtr(s string) *string { return &s }

func TestInstrumentRepository_CreateAndFind(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, apple())
	require.NoError(t, err)

	assert.Positive(t, created.ID)
	assert.Equal(t, domain.InstrumentTypeEquity, created.InstrumentType)
	require.NotNil(t, created.LastPrice)
	assert.True(t, created.LastPrice.Equal(domain.MustDecimal("150.25")))
	assert.NotNil(t, created.CreatedAt)
	assert.NotNil(t, created.UpdatedAt)

	found, ok, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created, found)
}

func TestInstrumentRepository_RoundTripsEveryField(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))
	ctx := context.Background()

	chf := domain.CurrencyCHF
	rate := domain.MustDecimal("2.5")
	period := int64(365)
	pct := domain.MustDecimal("101.5")
	size := int64(100)
	margin := domain.MustDecimal("5000")
	issue := domain.NewDate(2020, time.January, 15)
	maturity := domain.NewDate(2030, time.January, 15)
	coupon := domain.NewDate(2025, time.July, 15)

	inst := domain.NewInstrument("CH-GOV-30", "Swiss Confederation 2030", domain.InstrumentTypeBond, domain.CurrencyCHF, domain.CurrencyEUR)
	inst.ISIN = strPtr("CH0224397213")
	inst.Sector = strPtr("Government")
	inst.Country = strPtr("Switzerland")
	inst.StatisticalCurrency = &chf
	inst.InterestRate = &rate
	inst.InterestPeriod = &period
	inst.IssueDate = &issue
	inst.ExpirationDate = &maturity
	inst.FirstCallPercentage = &pct
	inst.CouponDate2 = &coupon
	inst.ContractSize = &size
	inst.InitialMargin = &margin
	inst.ReutersSymbol = strPtr("CH30YT=RR")
	inst.FreeText3 = strPtr("note")
	inst.MetadataJSON = strPtr(`{"rating":"AAA"}`)

	created, err := repo.Create(ctx, inst)
	require.NoError(t, err)

	got, ok, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "CH0224397213", *got.ISIN)
	assert.Equal(t, domain.InstrumentTypeBond, got.InstrumentType)
	assert.Equal(t, domain.CurrencyEUR, got.InterestCurrency)
	assert.Equal(t, domain.CurrencyCHF, *got.StatisticalCurrency)
	assert.True(t, got.InterestRate.Equal(rate))
	assert.Equal(t, int64(365), *got.InterestPeriod)
	assert.True(t, got.IssueDate.Equal(issue))
	assert.True(t, got.ExpirationDate.Equal(maturity))
	assert.True(t, got.CouponDate2.Equal(coupon))
	assert.Nil(t, got.CouponDate0)
	assert.True(t, got.FirstCallPercentage.Equal(pct))
	assert.Equal(t, int64(100), *got.ContractSize)
	assert.True(t, got.InitialMargin.Equal(margin))
	assert.Equal(t, "CH30YT=RR", *got.ReutersSymbol)
	assert.Equal(t, `{"rating":"AAA"}`, *got.MetadataJSON)
	assert.Nil(t, got.YahooSymbol)
}

func TestInstrumentRepository_Create_RejectsInvalid(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))

	inst := apple()
	inst.InstrumentType = "Stock"

	_, err := repo.Create(context.Background(), inst)
	assert.ErrorIs(t, err, domain.ErrInvalidInstrument)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestInstrumentRepository_Create_DuplicateISIN(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))
	ctx := context.Background()

	first := apple()
	first.ISIN = strPtr("US0378331005")
	_, err := repo.Create(ctx, first)
	require.NoError(t, err)

	second := apple()
	second.ISIN = strPtr("US0378331005")
	_, err = repo.Create(ctx, second)
	assert.ErrorIs(t, err, domain.ErrDuplicateInstrument)
}

func TestInstrumentRepository_FindByID_NotFound(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))

	_, ok, err := repo.FindByID(context.Background(), 999)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestInstrumentRepository_List_OrderedByID(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))
	ctx := context.Background()

	empty, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	var ids []int64
	for _, name := range []string{"C", "A", "B"} {
		inst := apple()
		inst.ShortName = name
		created, err := repo.Create(ctx, inst)
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, inst := range all {
		assert.Equal(t, ids[i], inst.ID)
	}
	assert.Less(t, all[0].ID, all[1].ID)
	assert.Less(t, all[1].ID, all[2].ID)
}

func TestInstrumentRepository_Update_OnlyTouchesSuppliedFields(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))
	ctx := context.Background()

	first, err := repo.Create(ctx, apple())
	require.NoError(t, err)
	otherInst := apple()
	otherInst.ShortName = "MSFT"
	second, err := repo.Create(ctx, otherInst)
	require.NoError(t, err)

	updated, ok, err := repo.Update(ctx, first.ID, domain.InstrumentPatch{Sector: domain.Some("Updated Sector")})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Updated Sector", *updated.Sector)

	got, _, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated Sector", *got.Sector)
	assert.Equal(t, first.ShortName, got.ShortName)
	assert.Equal(t, first.FullName, got.FullName)
	assert.True(t, first.LastPrice.Equal(*got.LastPrice))
	assert.Equal(t, *first.CreatedAt, *got.CreatedAt)
	assert.False(t, got.UpdatedAt.Before(*first.UpdatedAt))

	untouched, _, err := repo.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second, untouched)
}

func TestInstrumentRepository_Update_ClearsNullFields(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))
	ctx := context.Background()

	inst := apple()
	inst.Sector = strPtr("Technology")
	created, err := repo.Create(ctx, inst)
	require.NoError(t, err)

	updated, ok, err := repo.Update(ctx, created.ID, domain.InstrumentPatch{
		Sector:        domain.Null[string](),
		LastPriceDate: domain.Some(domain.NewDate(2024, time.January, 15)),
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, updated.Sector)
	assert.Equal(t, "2024-01-15", updated.LastPriceDate.String())
}

func TestInstrumentRepository_Update_EmptyPatchReturnsCurrent(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, apple())
	require.NoError(t, err)

	got, ok, err := repo.Update(ctx, created.ID, domain.InstrumentPatch{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created, got)

	_, ok, err = repo.Update(ctx, created.ID+100, domain.InstrumentPatch{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInstrumentRepository_Update_NotFound(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))

	_, ok, err := repo.Update(context.Background(), 12345, domain.InstrumentPatch{Sector: domain.Some("x")})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestInstrumentRepository_Update_RejectsInvalidPatch(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, apple())
	require.NoError(t, err)

	_, _, err = repo.Update(ctx, created.ID, domain.InstrumentPatch{
		Sector:         domain.Some("Changed"),
		InstrumentType: domain.Some(domain.InstrumentType("Option")),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInstrument)

	got, _, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Sector, "no partial column update")
}

func TestInstrumentRepository_Delete(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, apple())
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	deleted, err = repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestInstrumentRepository_Ping(t *testing.T) {
	repo := NewInstrumentRepository(setupTestDB(t))
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestInstrumentRepository_Update_StatementIsDeterministic(t *testing.T) {
	rawDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() {
		_ = rawDB.Close()
	}()
	repo := NewInstrumentRepository(New(rawDB, &PostgresDialect{}))

	mock.ExpectExec("UPDATE instrument SET sector = $1, statistical_currency = $2, last_price = $3, free_text_1 = $4, updated_at = CURRENT_TIMESTAMP WHERE instrument_id = $5").
		WithArgs("Tech", nil, "99.5", "memo", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	patch := domain.InstrumentPatch{
		FreeText1:           domain.Some("memo"),
		LastPrice:           domain.Some(domain.MustDecimal("99.5")),
		Sector:              domain.Some("Tech"),
		StatisticalCurrency: domain.Null[domain.Currency](),
	}
	_, ok, err := repo.Update(context.Background(), 3, patch)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstrumentRepository_List_FailsOnBadRow(t *testing.T) {
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() {
		_ = rawDB.Close()
	}()
	repo := NewInstrumentRepository(New(rawDB, &SQLiteDialect{}))

	rows := sqlmock.NewRows([]string{"instrument_id", "short_name", "full_name", "instrument_type", "original_currency", "interest_currency"}).
		AddRow(int64(1), "AAPL", "Apple Inc.", "Equity", "USD", "USD").
		AddRow(int64(2), "XAU", "Gold", "Commodity", "USD", "USD")
	mock.ExpectQuery("SELECT .* FROM instrument ORDER BY instrument_id").WillReturnRows(rows)

	_, err = repo.List(context.Background())

	var rowErr *domain.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, int64(2), rowErr.InstrumentID)
	assert.Equal(t, "instrument_type", rowErr.Column)
}

func TestInstrumentRepository_StoredNaNIsReportedNotRendered(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInstrumentRepository(db)
	ctx := context.Background()

	id, err := db.RunInsert(ctx,
		"INSERT INTO instrument (short_name, full_name, instrument_type, original_currency, interest_currency, last_price) VALUES (?, ?, ?, ?, ?, ?)",
		idColumn, "BAD", "Bad Price", "Equity", "USD", "USD", "NaN")
	require.NoError(t, err)

	_, err = repo.List(ctx)
	var rowErr *domain.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, id, rowErr.InstrumentID)
	assert.Equal(t, "last_price", rowErr.Column)

	found, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)

	instruments, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, instruments)
}
