package services

import (
	"context"
	"strings"
	"testing"

	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book, err := env.catalog.Create(ctx, &BookInput{
		Title:         strPtr("  <b>Dune</b> "),
		Author:        strPtr("Frank Herbert"),
		ISBN:          strPtr("978 0441 013593"),
		PublishedDate: strPtr("1965-08-01"),
		TotalCopies:   intPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "9780441013593", book.ISBN)
	assert.Equal(t, "1965-08-01", domain.FormatDate(book.PublishedDate))
	assert.Equal(t, 3, book.TotalCopies)
	assert.Equal(t, 3, book.AvailableCopies)

	_, err = env.catalog.Create(ctx, &BookInput{
		Title:  strPtr("Dune again"),
		Author: strPtr("Someone"),
		ISBN:   strPtr("9780441013593"),
	})
	assert.ErrorIs(t, err, domain.ErrISBNTaken)
}

func TestCreateBookValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input *BookInput
	}{
		{"missing fields", &BookInput{Title: strPtr("T")}},
		{"blank after sanitising", &BookInput{Title: strPtr("<script></script>"), Author: strPtr("A"), ISBN: strPtr("1")}},
		{"bad date", &BookInput{Title: strPtr("T"), Author: strPtr("A"), ISBN: strPtr("2"), PublishedDate: strPtr("01/02/2020")}},
		{"negative copies", &BookInput{Title: strPtr("T"), Author: strPtr("A"), ISBN: strPtr("3"), TotalCopies: intPtr(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.catalog.Create(ctx, tt.input)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestUpdateCopiesFollowsLoans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "alice", domain.RoleMember)
	book := env.addBook(t, "X", 2)

	_, err := env.ledger.Checkout(ctx, user.ID, book.ID)
	require.NoError(t, err)

	updated, err := env.catalog.Update(ctx, book.ID, &BookInput{TotalCopies: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.TotalCopies)
	assert.Equal(t, 4, updated.AvailableCopies)

	// One copy is out, so the total cannot drop to zero
	_, err = env.catalog.Update(ctx, book.ID, &BookInput{TotalCopies: intPtr(0)})
	assert.ErrorIs(t, err, domain.ErrTotalBelowOnLoan)

	updated, err = env.catalog.Update(ctx, book.ID, &BookInput{TotalCopies: intPtr(1), Title: strPtr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, 1, updated.TotalCopies)
	assert.Equal(t, 0, updated.AvailableCopies)
}

func TestUpdateAvailableCopiesMovesTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "alice", domain.RoleMember)
	book := env.addBook(t, "X", 1)

	updated, err := env.catalog.Update(ctx, book.ID, &BookInput{AvailableCopies: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.AvailableCopies)
	assert.Equal(t, 5, updated.TotalCopies)

	_, err = env.ledger.Checkout(ctx, user.ID, book.ID)
	require.NoError(t, err)

	updated, err = env.catalog.Update(ctx, book.ID, &BookInput{AvailableCopies: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.AvailableCopies)
	assert.Equal(t, 1, updated.TotalCopies)

	updated, err = env.catalog.Update(ctx, book.ID, &BookInput{TotalCopies: intPtr(3), AvailableCopies: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.TotalCopies)
	assert.Equal(t, 2, updated.AvailableCopies)

	tests := []struct {
		name  string
		input *BookInput
	}{
		{"negative", &BookInput{AvailableCopies: intPtr(-1)}},
		{"disagrees with total", &BookInput{TotalCopies: intPtr(4), AvailableCopies: intPtr(4)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.catalog.Update(ctx, book.ID, tt.input)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	got := env.book(t, book.ID)
	assert.Equal(t, 3, got.TotalCopies)
	assert.Equal(t, 2, got.AvailableCopies)
}

func TestBookTextLengthCountsCharacters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book, err := env.catalog.Create(ctx, &BookInput{
		Title:  strPtr(strings.Repeat("本", 60)),
		Author: strPtr("Natsume Soseki"),
		ISBN:   strPtr("9784101010014"),
	})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("本", 60), book.Title)

	_, err = env.catalog.Update(ctx, book.ID, &BookInput{Title: strPtr(strings.Repeat("本", 101))})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateRejectsTakenISBN(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addBook(t, "X", 1)
	other := env.addBook(t, "Y", 1)

	_, err := env.catalog.Update(ctx, other.ID, &BookInput{ISBN: strPtr("X")})
	assert.ErrorIs(t, err, domain.ErrISBNTaken)

	_, err = env.catalog.Update(ctx, 9999, &BookInput{Title: strPtr("T")})
	assert.ErrorIs(t, err, domain.ErrBookNotFound)
}

func TestDeleteBook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "alice", domain.RoleMember)
	book := env.addBook(t, "X", 1)

	_, err := env.ledger.Checkout(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, env.catalog.Delete(ctx, book.ID), domain.ErrBookHasOpenLoans)

	_, err = env.ledger.Return(ctx, user.ID, book.ID)
	require.NoError(t, err)
	require.NoError(t, env.catalog.Delete(ctx, book.ID))

	_, err = env.catalog.Get(ctx, book.ID)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)

	// The loan history still names the deleted book
	history, err := env.ledger.History(ctx, user.ID, pagination.New(1, 10))
	require.NoError(t, err)
	require.Equal(t, int64(1), history.Meta.Total)
}

func TestListBooks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "alice", domain.RoleMember)

	for _, in := range []BookInput{
		{Title: strPtr("Go in Action"), Author: strPtr("Kennedy"), ISBN: strPtr("111")},
		{Title: strPtr("The Go Programming Language"), Author: strPtr("Donovan"), ISBN: strPtr("222")},
		{Title: strPtr("Dune"), Author: strPtr("Herbert"), ISBN: strPtr("333")},
	} {
		in := in
		_, err := env.catalog.Create(ctx, &in)
		require.NoError(t, err)
	}

	page, err := env.catalog.List(ctx, BookQuery{Search: "go", Params: pagination.New(1, 10)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Meta.Total)

	page, err = env.catalog.List(ctx, BookQuery{Ordering: "-title", Params: pagination.New(1, 1)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Meta.Total)
	assert.True(t, page.Meta.HasNext)

	dune, err := env.catalog.All(ctx)
	require.NoError(t, err)
	require.Len(t, dune, 3)
	assert.Equal(t, "Dune", dune[0].Title)

	_, err = env.ledger.Checkout(ctx, user.ID, dune[0].ID)
	require.NoError(t, err)
	page, err = env.catalog.List(ctx, BookQuery{Available: boolPtr(true), Params: pagination.New(1, 10)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Meta.Total)
}
