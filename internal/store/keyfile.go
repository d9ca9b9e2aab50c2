package store

import (
	"encoding/json"
	"fmt"
	"time"

	"dhke/internal/util/memzero"
)

// KeyRecord is what a key file holds once opened.
type KeyRecord struct {
	Key         []byte    `json:"key"`
	Fingerprint string    `json:"fingerprint"`
	Peer        string    `json:"peer,omitempty"`
	GroupBits   int       `json:"group_bits"`
	Created     time.Time `json:"created"`
}

// SaveKey seals rec under passphrase and writes it to path with mode 0600.
func SaveKey(path, passphrase string, rec KeyRecord) error {
	if passphrase == "" {
		return fmt.Errorf("empty passphrase")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)

	blob, err := seal(passphrase, raw)
	if err != nil {
		return fmt.Errorf("seal key file: %w", err)
	}
	return writeFile(path, blob, 0o600)
}

// LoadKey opens a key file. A wrong passphrase yields ErrWrongPassphrase.
func LoadKey(path, passphrase string) (KeyRecord, error) {
	blob, err := readFile(path)
	if err != nil {
		return KeyRecord{}, err
	}
	raw, err := open(passphrase, blob)
	if err != nil {
		return KeyRecord{}, err
	}
	defer memzero.Zero(raw)

	var rec KeyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return KeyRecord{}, fmt.Errorf("decode key record: %w", err)
	}
	return rec, nil
}
