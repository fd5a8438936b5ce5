package store

import (
	"time"

	"github.com/inkstonehq/inkstone/internal/profile"
)

// Store provides scalar database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// NowMilli returns the current millisecond epoch, the timestamp unit used
// throughout the store.
func NowMilli() int64 {
	return time.Now().UnixMilli()
}
