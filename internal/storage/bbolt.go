package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket     = []byte("config")     // key params, vault MAC, timestamps - unencrypted
	ContainersBucket = []byte("containers") // encrypted container records
	PrivateBucket    = []byte("private")    // reserved encrypted records (cloud credential/token)
)

// Config keys
var (
	ConfigVersion  = []byte("version")
	ConfigCreated  = []byte("created")
	ConfigModified = []byte("modified")
	ConfigSalt     = []byte("salt")
	ConfigIV       = []byte("iv")
	ConfigKDF      = []byte("kdf")
	ConfigMAC      = []byte("mac")
	ConfigVaultID  = []byte("vault_id")
)

// Store provides BBolt-based storage for a securebox vault file
type Store struct {
	db *bolt.DB
}

// Open opens or creates a vault database
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.db.Path()
}

// Initialize creates the bucket structure for a new vault
func (s *Store) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, ContainersBucket, PrivateBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}

		now := time.Now()
		created, _ := now.MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// IsInitialized checks if the database has been initialized
func (s *Store) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// SetKeyParams stores the vault salt, iv and KDF parameters
func (s *Store) SetKeyParams(kp KeyParams) error {
	kdf, err := json.Marshal(kp.KDF)
	if err != nil {
		return fmt.Errorf("failed to marshal kdf params: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		if err := config.Put(ConfigSalt, kp.Salt); err != nil {
			return err
		}
		if err := config.Put(ConfigIV, kp.IV); err != nil {
			return err
		}
		return config.Put(ConfigKDF, kdf)
	})
}

// GetKeyParams retrieves the vault salt, iv and KDF parameters
func (s *Store) GetKeyParams() (KeyParams, error) {
	var kp KeyParams
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		salt := config.Get(ConfigSalt)
		iv := config.Get(ConfigIV)
		kdf := config.Get(ConfigKDF)
		if salt == nil || iv == nil || kdf == nil {
			return fmt.Errorf("key parameters not found")
		}
		// Copy slices out since they are only valid during the transaction
		kp.Salt = append([]byte(nil), salt...)
		kp.IV = append([]byte(nil), iv...)
		return json.Unmarshal(kdf, &kp.KDF)
	})
	return kp, err
}

// GetVaultMAC retrieves the whole-vault MAC
func (s *Store) GetVaultMAC() ([]byte, error) {
	var mac []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		data := config.Get(ConfigMAC)
		if data == nil {
			return fmt.Errorf("vault mac not found")
		}
		mac = append([]byte(nil), data...)
		return nil
	})
	return mac, err
}

// SetVaultMAC stores the whole-vault MAC
func (s *Store) SetVaultMAC(mac []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		return config.Put(ConfigMAC, mac)
	})
}

// idKey encodes a container id as a big-endian key so bucket iteration
// yields ascending id order.
func idKey(id int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

// PutContainer stores an encrypted container record together with the
// refreshed vault MAC in one transaction.
func (s *Store) PutContainer(id int, rec Record, vaultMAC []byte) error {
	if err := rec.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		containers := tx.Bucket(ContainersBucket)
		if containers == nil {
			return ErrNotInitialized
		}
		if err := containers.Put(idKey(id), data); err != nil {
			return err
		}
		return touch(tx, vaultMAC)
	})
}

// DeleteContainer removes a container record and refreshes the vault MAC
// in one transaction.
func (s *Store) DeleteContainer(id int, vaultMAC []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		containers := tx.Bucket(ContainersBucket)
		if containers == nil {
			return ErrNotInitialized
		}
		if containers.Get(idKey(id)) == nil {
			return ErrNoRecord
		}
		if err := containers.Delete(idKey(id)); err != nil {
			return err
		}
		return touch(tx, vaultMAC)
	})
}

// GetContainer retrieves a single encrypted container record
func (s *Store) GetContainer(id int) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		containers := tx.Bucket(ContainersBucket)
		if containers == nil {
			return ErrNotInitialized
		}
		data := containers.Get(idKey(id))
		if data == nil {
			return ErrNoRecord
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

// ForEachContainer iterates over all container records in ascending id
// order. A malformed record stops iteration with the unmarshal error.
func (s *Store) ForEachContainer(fn func(id int, rec Record) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		containers := tx.Bucket(ContainersBucket)
		if containers == nil {
			return ErrNotInitialized
		}
		return containers.ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return fmt.Errorf("malformed container key %x", k)
			}
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("malformed container record %x: %w", k, err)
			}
			return fn(int(binary.BigEndian.Uint64(k)), rec)
		})
	})
}

// PutReserved stores a reserved encrypted record (cloud credential or
// token) together with the refreshed vault MAC.
func (s *Store) PutReserved(name string, rec Record, vaultMAC []byte) error {
	if err := rec.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		private := tx.Bucket(PrivateBucket)
		if private == nil {
			return ErrNotInitialized
		}
		if err := private.Put([]byte(name), data); err != nil {
			return err
		}
		return touch(tx, vaultMAC)
	})
}

// GetReserved retrieves a reserved encrypted record
func (s *Store) GetReserved(name string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		private := tx.Bucket(PrivateBucket)
		if private == nil {
			return ErrNotInitialized
		}
		data := private.Get([]byte(name))
		if data == nil {
			return ErrNoRecord
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

// DeleteReserved removes a reserved record and refreshes the vault MAC.
// Deleting an absent record is not an error.
func (s *Store) DeleteReserved(name string, vaultMAC []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		private := tx.Bucket(PrivateBucket)
		if private == nil {
			return ErrNotInitialized
		}
		if err := private.Delete([]byte(name)); err != nil {
			return err
		}
		return touch(tx, vaultMAC)
	})
}

// touch updates the vault MAC and the modified timestamp inside an open
// write transaction.
func touch(tx *bolt.Tx, vaultMAC []byte) error {
	config := tx.Bucket(ConfigBucket)
	if config == nil {
		return ErrNotInitialized
	}
	if err := config.Put(ConfigMAC, vaultMAC); err != nil {
		return err
	}
	now := time.Now()
	modified, _ := now.MarshalBinary()
	return config.Put(ConfigModified, modified)
}

// GetModified retrieves the last modified timestamp
func (s *Store) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

// GetCreated retrieves the creation timestamp
func (s *Store) GetCreated() (time.Time, error) {
	var created time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		data := config.Get(ConfigCreated)
		if data == nil {
			return fmt.Errorf("created time not found")
		}
		return created.UnmarshalBinary(data)
	})
	return created, err
}

// GetVaultID retrieves the vault ID from the config bucket
func (s *Store) GetVaultID() (string, error) {
	var vaultID string
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		data := config.Get(ConfigVaultID)
		if data == nil {
			return ErrNoRecord
		}
		vaultID = string(data)
		return nil
	})
	return vaultID, err
}

// GetOrCreateVaultID retrieves the existing vault ID or generates a new one
func (s *Store) GetOrCreateVaultID() (string, error) {
	vaultID, err := s.GetVaultID()
	if err == nil {
		return vaultID, nil
	}

	vaultID = uuid.NewString()
	err = s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		return config.Put(ConfigVaultID, []byte(vaultID))
	})
	if err != nil {
		return "", err
	}

	return vaultID, nil
}

// Export reads the complete vault state into a Snapshot.
func (s *Store) Export() (Snapshot, error) {
	snap := Snapshot{
		Containers: make(map[int]Record),
		Reserved:   make(map[string]Record),
	}

	kp, err := s.GetKeyParams()
	if err != nil {
		return snap, err
	}
	snap.Key = kp

	if snap.MAC, err = s.GetVaultMAC(); err != nil {
		return snap, err
	}
	if snap.Created, err = s.GetCreated(); err != nil {
		return snap, err
	}
	snap.VaultID, _ = s.GetVaultID()

	err = s.ForEachContainer(func(id int, rec Record) error {
		snap.Containers[id] = rec
		return nil
	})
	if err != nil {
		return snap, err
	}

	for _, name := range []string{ReservedCredential, ReservedToken} {
		rec, err := s.GetReserved(name)
		if err == ErrNoRecord {
			continue
		}
		if err != nil {
			return snap, err
		}
		snap.Reserved[name] = rec
	}

	return snap, nil
}

// WriteSnapshot builds a complete new vault database at path. It is used
// by password change and key rotation to stage the re-encrypted vault
// before it atomically replaces the old file.
func WriteSnapshot(path string, snap Snapshot) error {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	kdf, err := json.Marshal(snap.Key.KDF)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to marshal kdf params: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, ContainersBucket, PrivateBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}

		created := snap.Created
		if created.IsZero() {
			created = time.Now()
		}
		createdBin, _ := created.MarshalBinary()
		if err := config.Put(ConfigCreated, createdBin); err != nil {
			return err
		}
		modified, _ := time.Now().MarshalBinary()
		if err := config.Put(ConfigModified, modified); err != nil {
			return err
		}

		if err := config.Put(ConfigSalt, snap.Key.Salt); err != nil {
			return err
		}
		if err := config.Put(ConfigIV, snap.Key.IV); err != nil {
			return err
		}
		if err := config.Put(ConfigKDF, kdf); err != nil {
			return err
		}
		if err := config.Put(ConfigMAC, snap.MAC); err != nil {
			return err
		}
		if snap.VaultID != "" {
			if err := config.Put(ConfigVaultID, []byte(snap.VaultID)); err != nil {
				return err
			}
		}

		containers := tx.Bucket(ContainersBucket)
		ids := make([]int, 0, len(snap.Containers))
		for id := range snap.Containers {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			data, err := json.Marshal(snap.Containers[id])
			if err != nil {
				return fmt.Errorf("failed to marshal record: %w", err)
			}
			if err := containers.Put(idKey(id), data); err != nil {
				return err
			}
		}

		private := tx.Bucket(PrivateBucket)
		for name, rec := range snap.Reserved {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal record: %w", err)
			}
			if err := private.Put([]byte(name), data); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		os.Remove(path)
		return err
	}

	if err := db.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Replace atomically swaps this store's file with the database staged at
// newPath. On failure the original file is restored.
func (s *Store) Replace(newPath string) error {
	srcPath := s.db.Path()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close source database: %w", err)
	}

	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(newPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	db, err := bolt.Open(srcPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	s.db = db

	return nil
}
