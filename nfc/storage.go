package nfc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
)

const DefaultDBPath = "cards.db"

// Card is an operator supplied label for a known card.
type Card struct {
	UID   string    `json:"uid"`
	Label string    `json:"label"`
	Added time.Time `json:"added"`
}

func (c Card) String() string {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("UID: %v, label: %v", c.UID, c.Label)
	}
	return string(b)
}

type DB struct {
	instance *buntdb.DB
}

// NewDB opens the card registry at path. ":memory:" gives a registry that lives only as long as the process.
func NewDB(path string) (*DB, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.CreateIndex("label", "card:*", buntdb.IndexJSON("label")); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{instance: db}, nil
}

func (db *DB) Close() error {
	return db.instance.Close()
}

func (db *DB) StoreCard(c Card) error {
	uid, err := ParseUID(c.UID)
	if err != nil {
		return err
	}
	if len(uid) == 0 {
		return errors.New("card UID must not be empty")
	}
	c.UID = uid.String()
	if c.Added.IsZero() {
		c.Added = time.Now()
	}

	return db.instance.Update(func(tx *buntdb.Tx) error {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(getCardKey(c.UID), string(data), nil)
		return err
	})
}

func (db *DB) ReadCard(uid string) (Card, error) {
	var c Card
	key, err := normalizedKey(uid)
	if err != nil {
		return c, err
	}
	err = db.instance.View(func(tx *buntdb.Tx) error {
		s, err := tx.Get(key)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(s), &c)
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return c, fmt.Errorf("%w: %v", ErrCardNotFound, uid)
	}
	return c, err
}

// ReadAll returns every known card, ordered by label.
func (db *DB) ReadAll() ([]Card, error) {
	var cards []Card
	err := db.instance.View(func(tx *buntdb.Tx) error {
		var inner error
		err := tx.Ascend("label", func(key, value string) bool {
			var c Card
			if inner = json.Unmarshal([]byte(value), &c); inner != nil {
				return false
			}
			cards = append(cards, c)
			return true
		})
		if err != nil {
			return err
		}
		return inner
	})
	return cards, err
}

func (db *DB) DeleteCard(uid string) error {
	key, err := normalizedKey(uid)
	if err != nil {
		return err
	}
	err = db.instance.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrCardNotFound, uid)
	}
	return err
}

func normalizedKey(uid string) (string, error) {
	u, err := ParseUID(uid)
	if err != nil {
		return "", err
	}
	return getCardKey(u.String()), nil
}

func getCardKey(uid string) string {
	return fmt.Sprintf("card:%v", uid)
}
