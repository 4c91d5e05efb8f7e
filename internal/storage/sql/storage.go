package sqlstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ldomjan/sharedcal/internal/storage"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

var ErrConnectionFailed = errors.New("failed to connect")

const dbErrUniqueViolation = "23505"

type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type Storage struct {
	host     string
	port     int
	database string
	username string
	password string
	db       *sqlx.DB
}

func New(config Config) *Storage {
	return &Storage{
		host:     config.Host,
		port:     config.Port,
		database: config.Database,
		username: config.Username,
		password: config.Password,
	}
}

func (s *Storage) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(
		ctx,
		"postgres",
		fmt.Sprintf(
			"sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
			s.host, s.port, s.database, s.username, s.password),
	)
	if err != nil {
		log.Errorf("failed to connect: %v", err)
		return ErrConnectionFailed
	}
	s.db = db
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (s *Storage) AddEvent(ctx context.Context, e *storage.Event) error {
	if err := storage.ValidateEvent(*e); err != nil {
		return err
	}

	var err error
	switch e.ID {
	case "":
		err = s.db.GetContext(
			ctx,
			&e.ID,
			"INSERT INTO events(title, start_timestamp, end_timestamp, description, owner_id) "+
				"VALUES($1, $2, $3, $4, $5) RETURNING id",
			e.Title, e.StartTime.UTC(), e.EndTime.UTC(), e.Description, e.OwnerID)
	default:
		_, err = s.db.ExecContext(
			ctx,
			"INSERT INTO events(id, title, start_timestamp, end_timestamp, description, owner_id) "+
				"VALUES($1, $2, $3, $4, $5, $6)",
			e.ID, e.Title, e.StartTime.UTC(), e.EndTime.UTC(), e.Description, e.OwnerID)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateEventID)
	}

	return err
}

func (s *Storage) UpdateEvent(ctx context.Context, id string, e storage.Event) (storage.Event, error) {
	if err := storage.ValidateEvent(e); err != nil {
		return storage.Event{}, err
	}

	var found bool
	err := s.db.GetContext(
		ctx,
		&found,
		"UPDATE events SET title=$2, start_timestamp=$3, end_timestamp=$4, description=$5 "+
			"WHERE id=$1 RETURNING TRUE",
		id,
		e.Title,
		e.StartTime.UTC(),
		e.EndTime.UTC(),
		e.Description,
	)
	if errors.Is(err, sql.ErrNoRows) || !found {
		return storage.Event{}, fmt.Errorf("failed to update event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	if err != nil {
		return storage.Event{}, err
	}
	return s.GetEvent(ctx, id)
}

func (s *Storage) RemoveEvent(ctx context.Context, id string) (storage.Event, error) {
	e, err := s.GetEvent(ctx, id)
	if err != nil {
		return storage.Event{}, err
	}
	var found bool
	err = s.db.GetContext(ctx, &found, "DELETE FROM events WHERE id=$1 RETURNING TRUE", id)
	if errors.Is(err, sql.ErrNoRows) || !found {
		return storage.Event{}, fmt.Errorf("failed to remove event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	if err != nil {
		return storage.Event{}, err
	}
	return e, nil
}

func (s *Storage) GetEvent(ctx context.Context, id string) (storage.Event, error) {
	var e storage.Event
	err := s.db.GetContext(
		ctx,
		&e,
		"SELECT e.id, e.title, e.start_timestamp AS starttime, e.end_timestamp AS endtime, e.description, "+
			"e.owner_id AS ownerid, COALESCE(u.username, '') AS ownername "+
			"FROM events e LEFT JOIN users u ON u.id = e.owner_id WHERE e.id=$1",
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Event{}, fmt.Errorf("failed to get event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	return e, err
}

func (s *Storage) ListEvents(ctx context.Context) ([]storage.Event, error) {
	events := make([]storage.Event, 0)
	err := s.db.SelectContext(
		ctx,
		&events,
		"SELECT e.id, e.title, e.start_timestamp AS starttime, e.end_timestamp AS endtime, e.description, "+
			"e.owner_id AS ownerid, COALESCE(u.username, '') AS ownername "+
			"FROM events e LEFT JOIN users u ON u.id = e.owner_id",
	)
	return events, err
}

func (s *Storage) RemoveEndedBefore(ctx context.Context, t time.Time) ([]storage.Event, error) {
	removed := make([]storage.Event, 0)
	err := s.db.SelectContext(
		ctx,
		&removed,
		"DELETE FROM events WHERE end_timestamp < $1 "+
			"RETURNING id, title, start_timestamp AS starttime, end_timestamp AS endtime, description, "+
			"owner_id AS ownerid, '' AS ownername",
		t.UTC(),
	)
	return removed, err
}

func (s *Storage) AddUser(ctx context.Context, u *storage.User) error {
	var err error
	switch u.ID {
	case "":
		err = s.db.GetContext(
			ctx,
			&u.ID,
			"INSERT INTO users(username, password_hash) VALUES($1, $2) RETURNING id",
			u.Username, u.PasswordHash)
	default:
		_, err = s.db.ExecContext(
			ctx,
			"INSERT INTO users(id, username, password_hash) VALUES($1, $2, $3)",
			u.ID, u.Username, u.PasswordHash)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		return fmt.Errorf("duplicate username %q: %w", u.Username, storage.ErrDuplicateUsername)
	}
	return err
}

func (s *Storage) GetUser(ctx context.Context, id string) (storage.User, error) {
	var u storage.User
	err := s.db.GetContext(
		ctx,
		&u,
		"SELECT id, username, password_hash AS passwordhash FROM users WHERE id=$1",
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.User{}, fmt.Errorf("failed to get user with id %q: %w", id, storage.ErrNotFoundUser)
	}
	return u, err
}

func (s *Storage) GetUserByName(ctx context.Context, username string) (storage.User, error) {
	var u storage.User
	err := s.db.GetContext(
		ctx,
		&u,
		"SELECT id, username, password_hash AS passwordhash FROM users WHERE username=$1",
		username,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.User{}, fmt.Errorf("failed to get user %q: %w", username, storage.ErrNotFoundUser)
	}
	return u, err
}

func (s *Storage) ListUsers(ctx context.Context) ([]storage.User, error) {
	users := make([]storage.User, 0)
	err := s.db.SelectContext(
		ctx,
		&users,
		"SELECT id, username, password_hash AS passwordhash FROM users",
	)
	return users, err
}

func (s *Storage) UpdateUser(ctx context.Context, id string, u storage.User) (storage.User, error) {
	var found bool
	err := s.db.GetContext(
		ctx,
		&found,
		"UPDATE users SET username=$2, password_hash=COALESCE(NULLIF($3, ''), password_hash) "+
			"WHERE id=$1 RETURNING TRUE",
		id, u.Username, u.PasswordHash,
	)
	if errors.Is(err, sql.ErrNoRows) || !found {
		return storage.User{}, fmt.Errorf("failed to update user with id %q: %w", id, storage.ErrNotFoundUser)
	}
	if err != nil {
		return storage.User{}, err
	}
	return s.GetUser(ctx, id)
}

func (s *Storage) RemoveUser(ctx context.Context, id string) error {
	var found bool
	err := s.db.GetContext(ctx, &found, "DELETE FROM users WHERE id=$1 RETURNING TRUE", id)
	if errors.Is(err, sql.ErrNoRows) || !found {
		return fmt.Errorf("failed to remove user with id %q: %w", id, storage.ErrNotFoundUser)
	}
	return err
}
