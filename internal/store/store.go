// Package store keeps process-lifetime state in an in-memory SQLite database:
// the image cache backend and the accounts allowed to read /metrics.
package store

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/apibillme/cache"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/gitmatrixmax/google-dictionary/internal/logger"
)

type Store struct {
	db        *sql.DB
	log       *zap.Logger
	userCache cache.Cache
}

const imageTable string = `
  CREATE TABLE IF NOT EXISTS image_cache (
      term TEXT PRIMARY KEY,
      data BLOB NOT NULL,
      stored_at INT NOT NULL
  )
`

const userTable string = `
  CREATE TABLE IF NOT EXISTS users (
      user TEXT PRIMARY KEY,
      hash TEXT NOT NULL,
      level INT NOT NULL
  )
`

// The database lives in memory and vanishes with the process.
const dsn = "file::memory:?mode=memory"

// New opens the database and creates its tables.
func New(log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	for _, stmt := range []string{imageTable, userTable} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	return &Store{
		db:        db,
		log:       logger.Named(log, "store"),
		userCache: cache.New(256, cache.WithTTL(1*time.Hour)),
	}, nil
}

func (store *Store) Close() error {
	return store.db.Close()
}

// AddUser stores an account. hash must be an argon2id encoded hash and user
// must not exist yet.
func (store *Store) AddUser(user, hash string, level int) error {
	if _, _, _, err := argon2id.DecodeHash(hash); err != nil {
		return fmt.Errorf("user %s: %w", user, err)
	}
	_, err := store.db.Exec("INSERT INTO users VALUES (?,?,?)", user, hash, level)
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	return nil
}

// TestUser reports whether pass is the password of user. Verified passwords
// are remembered for an hour to skip the argon2id work on repeat requests.
func (store *Store) TestUser(user string, pass string) bool {
	userPass, ok := store.userCache.Get(user)
	if ok && 1 == subtle.ConstantTimeCompare([]byte(userPass.(string)), []byte(pass)) {
		return true
	}
	row := store.db.QueryRow("SELECT hash FROM users WHERE user = ?", user)
	var hash string
	err := row.Scan(&hash)
	if err == nil {
		match, err := argon2id.ComparePasswordAndHash(pass, hash)
		if err != nil {
			store.log.Error("Error comparing password hashes", zap.String("user", user), zap.Error(err))
			return false
		}
		if match {
			store.userCache.Set(user, pass)
			return true
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		store.log.Error("User lookup failed", zap.String("user", user), zap.Error(err))
	}
	return false
}

// HashPassword returns the argon2id encoding stored for a password.
func HashPassword(pass string) (string, error) {
	return argon2id.CreateHash(pass, argon2id.DefaultParams)
}
