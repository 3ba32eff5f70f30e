package seed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Validate checks a parsed user.
func (u User) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.UserID, validation.Required, is.UUID),
		validation.Field(&u.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&u.Email, validation.Required, is.EmailFormat),
		validation.Field(&u.Age, validation.By(func(any) error {
			if u.Age.IsNegative() {
				return errors.New("must not be negative")
			}
			return nil
		})),
	)
}

// ReadCSV parses users from r. The header must name the name, email and age
// columns; user_id is optional and a random UUID is generated for rows
// without one. A leading UTF-8 byte order mark is ignored.
func ReadCSV(r io.Reader) ([]User, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, goerrors.New("csv is empty", goerrors.CategoryBadInput)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "read csv header")
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"name", "email", "age"} {
		if _, ok := cols[required]; !ok {
			return nil, goerrors.New(fmt.Sprintf("csv header is missing %q", required), goerrors.CategoryBadInput).
				WithMetadata(map[string]any{"header": header})
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var users []User
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, fmt.Sprintf("read csv line %d", line))
		}

		age, err := decimal.NewFromString(field(row, "age"))
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, fmt.Sprintf("csv line %d: invalid age", line))
		}

		u := User{
			UserID: field(row, "user_id"),
			Name:   field(row, "name"),
			Email:  field(row, "email"),
			Age:    age,
		}
		if u.UserID == "" {
			u.UserID = uuid.NewString()
		}
		if err := u.Validate(); err != nil {
			return nil, goerrors.FromOzzoValidation(err, fmt.Sprintf("csv line %d", line))
		}
		users = append(users, u)
	}
	return users, nil
}

// SeedCSV creates the table, parses r and inserts every row in one
// transaction. It returns the number of rows written.
func (s *Seeder) SeedCSV(ctx context.Context, r io.Reader) (int, error) {
	users, err := ReadCSV(r)
	if err != nil {
		return 0, err
	}
	if err := s.CreateTable(ctx); err != nil {
		return 0, err
	}
	if err := s.Insert(ctx, users); err != nil {
		return 0, err
	}
	return len(users), nil
}
