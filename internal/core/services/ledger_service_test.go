package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutAndLateReturn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "alice", domain.RoleMember)
	book := env.addBook(t, "X", 1)

	entry, err := env.ledger.Checkout(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", domain.FormatDate(entry.CheckoutDate))
	assert.Equal(t, "2024-03-15", domain.FormatDate(entry.DueDate))
	assert.Equal(t, 0, env.book(t, book.ID).AvailableCopies)

	// Fifteen days after the due date
	env.clock.AddDays(29)
	returned, err := env.ledger.Return(ctx, user.ID, book.ID)
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, "2024-03-30", domain.FormatDate(*returned.ReturnDate))
	assert.Equal(t, "15.00", returned.Penalty.StringFixed(2))
	assert.Equal(t, 1, env.book(t, book.ID).AvailableCopies)

	mails := env.notifier.Sent()
	require.Len(t, mails, 1)
	assert.Equal(t, "alice@example.com", mails[0].To)
	assert.Equal(t, "Overdue Book Return", mails[0].Subject)
	assert.Contains(t, mails[0].Body, "15 days late")
	assert.Contains(t, mails[0].Body, "$15.00")

	assert.Equal(t, 1.0, env.counter(t, "libraryhub_returns_total", "success"))
	assert.Equal(t, 15.0, env.counter(t, "libraryhub_penalties_charged_total", ""))
}

func TestOnTimeReturnHasNoPenaltyOrMail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "bob", domain.RoleMember)
	book := env.addBook(t, "Y", 2)

	_, err := env.ledger.Checkout(ctx, user.ID, book.ID)
	require.NoError(t, err)

	env.clock.AddDays(14)
	returned, err := env.ledger.Return(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, returned.Penalty.IsZero())
	assert.Empty(t, env.notifier.Sent())
}

func TestCheckoutRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.addUser(t, "alice", domain.RoleMember)
	bob := env.addUser(t, "bob", domain.RoleMember)
	book := env.addBook(t, "X", 1)
	spare := env.addBook(t, "Z", 2)

	_, err := env.ledger.Checkout(ctx, alice.ID, 9999)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)

	_, err = env.ledger.Checkout(ctx, alice.ID, book.ID)
	require.NoError(t, err)

	// Shelf is empty, so "no copies" wins over "already checked out"
	_, err = env.ledger.Checkout(ctx, alice.ID, book.ID)
	assert.ErrorIs(t, err, domain.ErrNoCopiesAvailable)
	_, err = env.ledger.Checkout(ctx, bob.ID, book.ID)
	assert.ErrorIs(t, err, domain.ErrNoCopiesAvailable)

	_, err = env.ledger.Checkout(ctx, alice.ID, spare.ID)
	require.NoError(t, err)
	_, err = env.ledger.Checkout(ctx, alice.ID, spare.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedOut)

	// The rejected attempt must not have taken a copy
	assert.Equal(t, 1, env.book(t, spare.ID).AvailableCopies)
	assert.Equal(t, 2.0, env.counter(t, "libraryhub_checkouts_total", "rejected"))
}

func TestCheckoutNeedsActiveBorrower(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "root", domain.RoleAdmin)
	alice := env.addUser(t, "alice", domain.RoleMember)
	bob := env.addUser(t, "bob", domain.RoleMember)
	book := env.addBook(t, "X", 2)

	require.NoError(t, env.users.DeleteUser(ctx, alice.ID, admin.Actor()))
	_, err := env.ledger.Checkout(ctx, alice.ID, book.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = env.ledger.Checkout(ctx, 9999, book.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = env.users.UpdateUser(ctx, bob.ID, admin.Actor(), &UpdateUserInput{IsActive: boolPtr(false)})
	require.NoError(t, err)
	_, err = env.ledger.Checkout(ctx, bob.ID, book.ID)
	assert.ErrorIs(t, err, domain.ErrUserInactive)

	assert.Equal(t, 2, env.book(t, book.ID).AvailableCopies)
	loans, err := env.ledger.List(ctx, repositories.TransactionFilter{}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(0), loans.Meta.Total)
	assert.Equal(t, 2.0, env.counter(t, "libraryhub_checkouts_total", "not_found"))
	assert.Equal(t, 1.0, env.counter(t, "libraryhub_checkouts_total", "rejected"))
}

func TestLateReturnCommitsWhenNoticeIsDropped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "alice", domain.RoleMember)
	book := env.addBook(t, "X", 1)

	_, err := env.ledger.Checkout(ctx, user.ID, book.ID)
	require.NoError(t, err)

	env.notifier.reject = true
	env.clock.AddDays(20)
	returned, err := env.ledger.Return(ctx, user.ID, book.ID)
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, "6.00", returned.Penalty.StringFixed(2))
	assert.Empty(t, env.notifier.Sent())

	assert.Equal(t, 1, env.book(t, book.ID).AvailableCopies)
	status, err := env.ledger.Status(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, status.Returned)
	assert.Equal(t, 1.0, env.counter(t, "libraryhub_returns_total", "success"))
}

func TestReturnRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "alice", domain.RoleMember)
	book := env.addBook(t, "X", 1)

	_, err := env.ledger.Return(ctx, user.ID, 9999)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)

	_, err = env.ledger.Return(ctx, user.ID, book.ID)
	assert.ErrorIs(t, err, domain.ErrNotCheckedOut)

	_, err = env.ledger.Checkout(ctx, user.ID, book.ID)
	require.NoError(t, err)
	_, err = env.ledger.Return(ctx, user.ID, book.ID)
	require.NoError(t, err)

	// A second return of the same loan is refused
	_, err = env.ledger.Return(ctx, user.ID, book.ID)
	assert.ErrorIs(t, err, domain.ErrNotCheckedOut)
	assert.Equal(t, 1, env.book(t, book.ID).AvailableCopies)
}

func TestReturnRefusesToExceedTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "alice", domain.RoleMember)
	book := env.addBook(t, "X", 2)

	_, err := env.ledger.Checkout(ctx, user.ID, book.ID)
	require.NoError(t, err)

	// Put the shelf back to full behind the ledger's back
	_, err = env.store.Books().IncrementAvailable(ctx, book.ID)
	require.NoError(t, err)

	_, err = env.ledger.Return(ctx, user.ID, book.ID)
	assert.ErrorIs(t, err, domain.ErrInventoryOverflow)

	// Rolled back: loan is still open and counts are unchanged
	_, err = env.store.Transactions().GetOpen(ctx, user.ID, book.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, env.book(t, book.ID).AvailableCopies)
}

func TestReborrowAfterReturn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "alice", domain.RoleMember)
	book := env.addBook(t, "X", 1)

	for i := 0; i < 3; i++ {
		_, err := env.ledger.Checkout(ctx, user.ID, book.ID)
		require.NoError(t, err)
		env.clock.AddDays(1)
		_, err = env.ledger.Return(ctx, user.ID, book.ID)
		require.NoError(t, err)
	}

	history, err := env.ledger.History(ctx, user.ID, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), history.Meta.Total)
	assert.Equal(t, 1, env.book(t, book.ID).AvailableCopies)
}

func TestConcurrentCheckoutsNeverOverLend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, "X", 3)

	const borrowers = 8
	ids := make([]uint, borrowers)
	for i := range ids {
		ids[i] = env.addUser(t, "user"+string(rune('a'+i)), domain.RoleMember).ID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, noCopies := 0, 0
	for _, id := range ids {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := env.ledger.Checkout(ctx, userID, book.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if errors.Is(err, domain.ErrNoCopiesAvailable) {
				noCopies++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, borrowers-3, noCopies)
	assert.Equal(t, 0, env.book(t, book.ID).AvailableCopies)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "alice", domain.RoleMember)
	book := env.addBook(t, "X", 1)

	_, err := env.ledger.Status(ctx, user.ID, book.ID)
	assert.ErrorIs(t, err, domain.ErrNotCheckedOut)

	_, err = env.ledger.Status(ctx, user.ID, 9999)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)

	_, err = env.ledger.Checkout(ctx, user.ID, book.ID)
	require.NoError(t, err)
	status, err := env.ledger.Status(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.False(t, status.Returned)
	assert.Equal(t, MessageNotReturned, status.Message)

	_, err = env.ledger.Return(ctx, user.ID, book.ID)
	require.NoError(t, err)
	status, err = env.ledger.Status(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, status.Returned)
	assert.Equal(t, MessageReturned, status.Message)
	assert.Equal(t, "Book X", status.Entry.BookTitle)
}

func TestListFiltersByBorrower(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.addUser(t, "alice", domain.RoleMember)
	bob := env.addUser(t, "bob", domain.RoleMember)
	book := env.addBook(t, "X", 5)

	_, err := env.ledger.Checkout(ctx, alice.ID, book.ID)
	require.NoError(t, err)
	_, err = env.ledger.Checkout(ctx, bob.ID, book.ID)
	require.NoError(t, err)

	all, err := env.ledger.List(ctx, repositories.TransactionFilter{}, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Meta.Total)

	mine, err := env.ledger.History(ctx, bob.ID, pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), mine.Meta.Total)
}
