package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/logger"
	"libraryhub/internal/metrics"
	"libraryhub/internal/pkg/password"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	password.Cost = bcrypt.MinCost
}

// fakeClock is a settable clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(date string) *fakeClock {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return &fakeClock{now: t.Add(10 * time.Hour)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AddDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
}

// recordingNotifier captures queued mail
type recordingNotifier struct {
	mu     sync.Mutex
	mails  []Mail
	reject bool
}

func (n *recordingNotifier) Enqueue(mail Mail) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.reject {
		return false
	}
	n.mails = append(n.mails, mail)
	return true
}

func (n *recordingNotifier) Sent() []Mail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Mail(nil), n.mails...)
}

type testEnv struct {
	store    repositories.Store
	clock    *fakeClock
	notifier *recordingNotifier
	registry *prometheus.Registry
	metrics  *metrics.Collector
	ledger   *LedgerService
	catalog  *CatalogService
	users    *UserService
	auth     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() { _ = config.CloseDatabase(db) })

	env := &testEnv{
		store:    repositories.NewStore(db),
		clock:    newFakeClock("2024-03-01"),
		notifier: &recordingNotifier{},
		registry: prometheus.NewRegistry(),
	}
	env.metrics = metrics.NewCollector(env.registry)

	log := logger.Discard()
	env.ledger = NewLedgerService(env.store, domain.DefaultLendingPolicy(), env.notifier, env.metrics, env.clock.Now, log)
	env.catalog = NewCatalogService(env.store, env.clock.Now, log)
	env.users = NewUserService(env.store, env.clock.Now, log)
	env.auth = NewAuthService(env.store.Users(), env.store.RefreshTokens(), config.JWTConfig{
		Secret:           "test-secret",
		RefreshSecret:    "test-refresh-secret",
		AccessTokenMins:  15,
		RefreshTokenDays: 7,
	}, env.clock.Now, log)
	return env
}

func (e *testEnv) addUser(t *testing.T, username string, role domain.Role) *models.User {
	t.Helper()
	user, err := e.users.CreateUser(context.Background(), &CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
		Role:     string(role),
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) addBook(t *testing.T, isbn string, copies int) *models.Book {
	t.Helper()
	title := "Book " + isbn
	author := "Author"
	book, err := e.catalog.Create(context.Background(), &BookInput{
		Title:       &title,
		Author:      &author,
		ISBN:        &isbn,
		TotalCopies: &copies,
	})
	require.NoError(t, err)
	return book
}

func (e *testEnv) book(t *testing.T, id uint) *models.Book {
	t.Helper()
	book, err := e.catalog.Get(context.Background(), id)
	require.NoError(t, err)
	return book
}

// counter reads a counter from the test registry; label is the single label
// value, or empty for an unlabelled counter
func (e *testEnv) counter(t *testing.T, name, label string) float64 {
	t.Helper()
	families, err := e.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if label == "" || (len(m.GetLabel()) == 1 && m.GetLabel()[0].GetValue() == label) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func boolPtr(b bool) *bool { return &b }
