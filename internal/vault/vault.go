package vault

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/securebox/securebox/internal/backup"
	"github.com/securebox/securebox/internal/crypto"
	"github.com/securebox/securebox/internal/storage"
)

// Reserved payload labels, carried over from the persisted form so a
// rotated vault re-encrypts them like any other record.
const (
	credentialLabel = "Credential"
	tokenLabel      = "Token"
)

// DefaultRemoteSuffix is appended to the vault file name for remote
// backups when no explicit remote name is given.
const DefaultRemoteSuffix = ".BAK"

// Vault is the unlocked, in-memory representation of all containers plus
// the active key material. One Vault instance owns one persisted file
// exclusively for the duration of the session; it is constructed by
// Create or Open and discarded by Lock.
type Vault struct {
	path     string
	store    *storage.Store
	key      *crypto.KeyMaterial
	password []byte

	containers map[int]*Container
	order      []int // insertion order of container ids
	nextID     int

	// Encrypted mirror of the persisted state, kept so the whole-vault
	// MAC can be recomputed without re-reading the file.
	records  map[int]storage.Record
	reserved map[string]storage.Record

	resPlain map[string]payload // decrypted reserved payloads
}

// Create generates fresh key material, an empty container set and writes
// the initial vault file. It fails with ErrAlreadyExists if a vault is
// already present at path.
func Create(password []byte, path string) (*Vault, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, ErrAlreadyExists
	}

	km, err := crypto.Generate(password)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(path)
	if err != nil {
		km.Destroy()
		return nil, err
	}

	v := &Vault{
		path:       path,
		store:      store,
		key:        km,
		password:   append([]byte(nil), password...),
		containers: make(map[int]*Container),
		nextID:     1,
		records:    make(map[int]storage.Record),
		reserved:   make(map[string]storage.Record),
		resPlain:   make(map[string]payload),
	}

	if err := store.Initialize(); err != nil {
		v.Lock()
		os.Remove(path)
		return nil, err
	}
	if err := store.SetKeyParams(v.keyParams()); err != nil {
		v.Lock()
		os.Remove(path)
		return nil, err
	}
	mac, err := computeVaultMAC(km, v.records, v.reserved)
	if err != nil {
		v.Lock()
		os.Remove(path)
		return nil, err
	}
	if err := store.SetVaultMAC(mac); err != nil {
		v.Lock()
		os.Remove(path)
		return nil, err
	}
	if _, err := store.GetOrCreateVaultID(); err != nil {
		v.Lock()
		os.Remove(path)
		return nil, err
	}

	return v, nil
}

// Open re-derives the key from the persisted salt/iv and verifies the
// whole vault before returning it. A wrong password and a tampered
// record fail the same way: ErrWrongPassword. There is no partial
// unlock; use OpenRecovery for an explicit degraded unlock.
func Open(password []byte, path string) (*Vault, error) {
	v, err := load(password, path)
	if err != nil {
		return nil, err
	}

	macOK, err := v.verifyStoredMAC()
	if err != nil {
		v.Lock()
		return nil, err
	}
	if !macOK {
		v.Lock()
		return nil, ErrWrongPassword
	}

	if err := v.decryptAll(); err != nil {
		v.Lock()
		var ie *IntegrityError
		if errors.As(err, &ie) {
			// Aggregate MAC passed but a record failed: still reported
			// uniformly at open time.
			return nil, ErrWrongPassword
		}
		return nil, err
	}

	return v, nil
}

// OpenRecovery is the explicit degraded unlock: it returns the vault
// populated with every container that verifies, plus a per-container
// report for the rest. It still refuses to unlock when nothing verifies
// under the derived key, since that is indistinguishable from a wrong
// password.
func OpenRecovery(password []byte, path string) (*Vault, *IntegrityReport, error) {
	v, err := load(password, path)
	if err != nil {
		return nil, nil, err
	}

	report := &IntegrityReport{Reserved: make(map[string]bool)}
	report.MACOK, err = v.verifyStoredMAC()
	if err != nil {
		v.Lock()
		return nil, nil, err
	}

	verified := 0
	ids := sortedIDs(v.records)
	for _, id := range ids {
		c, err := decryptContainer(v.key, id, v.records[id])
		check := ContainerCheck{ID: id}
		if err == nil {
			check.OK = true
			verified++
			v.containers[id] = c
			v.order = append(v.order, id)
		} else if !isIntegrityFailure(err) {
			v.Lock()
			return nil, nil, err
		}
		report.Containers = append(report.Containers, check)
	}

	for name, rec := range v.reserved {
		p, err := decryptRecord(v.key, 0, []byte(name), rec)
		if err == nil {
			report.Reserved[name] = true
			verified++
			v.resPlain[name] = p
		} else if !isIntegrityFailure(err) {
			v.Lock()
			return nil, nil, err
		} else {
			report.Reserved[name] = false
		}
	}

	if verified == 0 && (len(v.records)+len(v.reserved) > 0 || !report.MACOK) {
		v.Lock()
		return nil, nil, ErrWrongPassword
	}

	return v, report, nil
}

// load opens the persisted file, derives the key and reads the encrypted
// records into memory without verifying or decrypting anything.
func load(password []byte, path string) (*Vault, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}

	store, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	ok, err := store.IsInitialized()
	if err != nil || !ok {
		store.Close()
		return nil, fmt.Errorf("%w: missing vault structure", ErrCorrupt)
	}

	kp, err := store.GetKeyParams()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	km, err := crypto.Load(password, kp.Salt, kp.IV, crypto.Params{
		Time:        kp.KDF.Time,
		MemoryMB:    kp.KDF.MemoryMB,
		Parallelism: kp.KDF.Parallelism,
	})
	if err != nil {
		store.Close()
		if errors.Is(err, crypto.ErrEmptyPassword) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	v := &Vault{
		path:       path,
		store:      store,
		key:        km,
		password:   append([]byte(nil), password...),
		containers: make(map[int]*Container),
		nextID:     1,
		records:    make(map[int]storage.Record),
		reserved:   make(map[string]storage.Record),
		resPlain:   make(map[string]payload),
	}

	err = store.ForEachContainer(func(id int, rec storage.Record) error {
		v.records[id] = rec
		return nil
	})
	if err != nil {
		v.Lock()
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	for _, name := range []string{storage.ReservedCredential, storage.ReservedToken} {
		rec, err := v.store.GetReserved(name)
		if errors.Is(err, storage.ErrNoRecord) {
			continue
		}
		if err != nil {
			v.Lock()
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		v.reserved[name] = rec
	}

	for id := range v.records {
		if id >= v.nextID {
			v.nextID = id + 1
		}
	}

	return v, nil
}

// decryptAll decrypts every loaded record into the in-memory container
// set, in ascending id order.
func (v *Vault) decryptAll() error {
	for _, id := range sortedIDs(v.records) {
		c, err := decryptContainer(v.key, id, v.records[id])
		if err != nil {
			return err
		}
		v.containers[id] = c
		v.order = append(v.order, id)
	}
	for name, rec := range v.reserved {
		p, err := decryptRecord(v.key, 0, []byte(name), rec)
		if err != nil {
			return err
		}
		v.resPlain[name] = p
	}
	return nil
}

// Inspect reads the vault identifier and last-modified time without
// deriving any keys. It never touches encrypted records.
func Inspect(path string) (vaultID string, modified time.Time, err error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", time.Time{}, ErrNotInitialized
		}
		return "", time.Time{}, err
	}

	store, err := storage.Open(path)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer store.Close()

	vaultID, err = store.GetVaultID()
	if err != nil && !errors.Is(err, storage.ErrNoRecord) {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	modified, _ = store.GetModified()
	return vaultID, modified, nil
}

// Path returns the persisted vault file path.
func (v *Vault) Path() string { return v.path }

// VaultID returns the stable vault identifier used as the keyring key.
func (v *Vault) VaultID() (string, error) {
	return v.store.GetOrCreateVaultID()
}

// AddContainer allocates the next id, encrypts the new container and
// persists the vault before returning the plaintext handle.
func (v *Vault) AddContainer(name, data string) (*Container, error) {
	id := v.nextID
	if name == "" {
		name = fmt.Sprintf("Container %d", id)
	}

	c := &Container{id: id, name: name, data: data}
	rec, err := encryptContainer(v.key, c)
	if err != nil {
		return nil, err
	}

	if err := v.persistContainer(id, rec); err != nil {
		return nil, err
	}

	v.containers[id] = c
	v.order = append(v.order, id)
	v.nextID = id + 1
	return c, nil
}

// GetContainer returns the in-memory decrypted container. It does not
// re-verify the rest of the vault; callers needing that guarantee must
// use VerifyIntegrity.
func (v *Vault) GetContainer(id int) (*Container, error) {
	c, ok := v.containers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Containers returns all containers in insertion order.
func (v *Vault) Containers() []*Container {
	out := make([]*Container, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.containers[id])
	}
	return out
}

// UpdateContainer mutates the provided fields, re-encrypts the container
// under fresh per-record material and persists. Nil fields are left
// unchanged.
func (v *Vault) UpdateContainer(id int, name, data *string) error {
	c, ok := v.containers[id]
	if !ok {
		return ErrNotFound
	}

	updated := &Container{id: id, name: c.name, data: c.data}
	if name != nil {
		updated.name = *name
	}
	if data != nil {
		updated.data = *data
	}

	rec, err := encryptContainer(v.key, updated)
	if err != nil {
		return err
	}
	if err := v.persistContainer(id, rec); err != nil {
		return err
	}

	c.name = updated.name
	c.data = updated.data
	return nil
}

// RemoveContainer deletes the container and persists the smaller vault.
// The id is never reused during this session.
func (v *Vault) RemoveContainer(id int) error {
	if _, ok := v.containers[id]; !ok {
		return ErrNotFound
	}

	delete(v.records, id)
	mac, err := computeVaultMAC(v.key, v.records, v.reserved)
	if err != nil {
		return err
	}
	if err := v.store.DeleteContainer(id, mac); err != nil {
		if errors.Is(err, storage.ErrNoRecord) {
			return ErrNotFound
		}
		return err
	}

	delete(v.containers, id)
	for i, oid := range v.order {
		if oid == id {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
	return nil
}

// VerifyIntegrity re-reads every persisted record and verifies it against
// the current key. This is the only operation that checks the whole
// vault; ordinary access trusts the state decrypted at unlock.
func (v *Vault) VerifyIntegrity() (*IntegrityReport, error) {
	report := &IntegrityReport{Reserved: make(map[string]bool)}

	diskRecords := make(map[int]storage.Record)
	err := v.store.ForEachContainer(func(id int, rec storage.Record) error {
		diskRecords[id] = rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	diskReserved := make(map[string]storage.Record)
	for _, name := range []string{storage.ReservedCredential, storage.ReservedToken} {
		rec, err := v.store.GetReserved(name)
		if errors.Is(err, storage.ErrNoRecord) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		diskReserved[name] = rec
	}

	for _, id := range sortedIDs(diskRecords) {
		_, err := decryptContainer(v.key, id, diskRecords[id])
		check := ContainerCheck{ID: id, OK: err == nil}
		if err != nil && !isIntegrityFailure(err) {
			return nil, err
		}
		report.Containers = append(report.Containers, check)
	}

	for name, rec := range diskReserved {
		_, err := decryptRecord(v.key, 0, []byte(name), rec)
		if err != nil && !isIntegrityFailure(err) {
			return nil, err
		}
		report.Reserved[name] = err == nil
	}

	stored, err := v.store.GetVaultMAC()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	computed, err := computeVaultMAC(v.key, diskRecords, diskReserved)
	if err != nil {
		return nil, err
	}
	report.MACOK = crypto.ConstantTimeCompare(stored, computed)

	return report, nil
}

// ChangeMasterPassword derives fresh key material from the new password,
// re-encrypts every record and atomically replaces the vault file. On
// any failure before the final rename the on-disk vault is untouched and
// still opens under the old password.
func (v *Vault) ChangeMasterPassword(newPassword []byte) error {
	if err := v.rotate(newPassword); err != nil {
		return err
	}
	crypto.ClearBytes(v.password)
	v.password = append([]byte(nil), newPassword...)
	return nil
}

// RegenerateKeys issues fresh salt/iv/key for the same master password
// and re-encrypts every record, as a rotation primitive against
// suspected key compromise. Same atomicity contract as a password
// change.
func (v *Vault) RegenerateKeys() error {
	return v.rotate(v.password)
}

func (v *Vault) rotate(password []byte) error {
	newKey, err := crypto.Generate(password)
	if err != nil {
		return err
	}

	newRecords := make(map[int]storage.Record, len(v.containers))
	for id, c := range v.containers {
		rec, err := encryptContainer(newKey, c)
		if err != nil {
			newKey.Destroy()
			return fmt.Errorf("failed to re-encrypt container %d: %w", id, err)
		}
		newRecords[id] = rec
	}

	newReserved := make(map[string]storage.Record, len(v.resPlain))
	for name, p := range v.resPlain {
		rec, err := encryptPayload(newKey, []byte(name), p)
		if err != nil {
			newKey.Destroy()
			return fmt.Errorf("failed to re-encrypt %s: %w", name, err)
		}
		newReserved[name] = rec
	}

	mac, err := computeVaultMAC(newKey, newRecords, newReserved)
	if err != nil {
		newKey.Destroy()
		return err
	}

	vaultID, _ := v.store.GetVaultID()
	created, _ := v.store.GetCreated()

	snap := storage.Snapshot{
		Key: storage.KeyParams{
			Salt: newKey.Salt,
			IV:   newKey.IV,
			KDF: storage.KDFParams{
				Time:        newKey.Params.Time,
				MemoryMB:    newKey.Params.MemoryMB,
				Parallelism: newKey.Params.Parallelism,
			},
		},
		MAC:        mac,
		Containers: newRecords,
		Reserved:   newReserved,
		VaultID:    vaultID,
		Created:    created,
	}

	stagePath := v.path + ".rewrite"
	if err := storage.WriteSnapshot(stagePath, snap); err != nil {
		newKey.Destroy()
		os.Remove(stagePath)
		return err
	}
	if err := v.store.Replace(stagePath); err != nil {
		newKey.Destroy()
		os.Remove(stagePath)
		return err
	}

	v.key.Destroy()
	v.key = newKey
	v.records = newRecords
	v.reserved = newReserved
	return nil
}

// SetCloudCredentials stores the credential and token blobs encrypted in
// the vault. Empty arguments leave the corresponding record unchanged.
func (v *Vault) SetCloudCredentials(creds, token string) error {
	if creds != "" {
		if err := v.putReserved(storage.ReservedCredential, payload{Name: credentialLabel, Data: creds}); err != nil {
			return err
		}
	}
	if token != "" {
		if err := v.putReserved(storage.ReservedToken, payload{Name: tokenLabel, Data: token}); err != nil {
			return err
		}
	}
	return nil
}

// ClearCloudCredentials removes the stored credential and token records.
func (v *Vault) ClearCloudCredentials() error {
	for _, name := range []string{storage.ReservedCredential, storage.ReservedToken} {
		if _, ok := v.reserved[name]; !ok {
			continue
		}
		delete(v.reserved, name)
		delete(v.resPlain, name)
		mac, err := computeVaultMAC(v.key, v.records, v.reserved)
		if err != nil {
			return err
		}
		if err := v.store.DeleteReserved(name, mac); err != nil {
			return err
		}
	}
	return nil
}

// CloudCredentials returns the stored credential and token blobs.
// Returns ErrNoCredentials when no credential record exists.
func (v *Vault) CloudCredentials() (creds, token string, err error) {
	p, ok := v.resPlain[storage.ReservedCredential]
	if !ok || p.Data == "" {
		return "", "", ErrNoCredentials
	}
	creds = p.Data
	if t, ok := v.resPlain[storage.ReservedToken]; ok {
		token = t.Data
	}
	return creds, token, nil
}

func (v *Vault) putReserved(name string, p payload) error {
	rec, err := encryptPayload(v.key, []byte(name), p)
	if err != nil {
		return err
	}
	v.reserved[name] = rec
	mac, err := computeVaultMAC(v.key, v.records, v.reserved)
	if err != nil {
		return err
	}
	if err := v.store.PutReserved(name, rec, mac); err != nil {
		return err
	}
	v.resPlain[name] = p
	return nil
}

// RemoteName returns the default remote blob name for this vault file.
func (v *Vault) RemoteName() string {
	return filepath.Base(v.path) + DefaultRemoteSuffix
}

// UploadBackup sends the persisted vault file to the gateway as an
// opaque blob. A failed upload never mutates local state.
func (v *Vault) UploadBackup(ctx context.Context, gw backup.Gateway, remoteName string) error {
	if remoteName == "" {
		remoteName = v.RemoteName()
	}
	clog.FromContext(ctx).Debugf("uploading vault %s as %s", v.path, remoteName)
	return gw.Upload(ctx, v.path, remoteName)
}

// DownloadBackup fetches the remote blob next to the vault file and
// returns the candidate path. The candidate is NOT trusted: callers must
// open it (with a password) and verify before replacing the local vault.
func (v *Vault) DownloadBackup(ctx context.Context, gw backup.Gateway, remoteName string) (string, error) {
	if remoteName == "" {
		remoteName = v.RemoteName()
	}
	candidate := v.path + ".download"
	clog.FromContext(ctx).Debugf("downloading backup %s to %s", remoteName, candidate)
	if err := gw.Download(ctx, remoteName, candidate); err != nil {
		return "", err
	}
	return candidate, nil
}

// Lock ends the session: key material and plaintext are cleared and the
// file handle released. The Vault must not be used afterwards.
func (v *Vault) Lock() error {
	crypto.ClearBytes(v.password)
	if v.key != nil {
		v.key.Destroy()
	}
	for _, c := range v.containers {
		c.name = ""
		c.data = ""
	}
	v.containers = nil
	v.order = nil
	v.records = nil
	v.reserved = nil
	v.resPlain = nil

	if v.store != nil {
		return v.store.Close()
	}
	return nil
}

// persistContainer writes one encrypted record plus the refreshed vault
// MAC; the in-memory mirror is kept consistent with what was written.
func (v *Vault) persistContainer(id int, rec storage.Record) error {
	old, hadOld := v.records[id]
	v.records[id] = rec

	mac, err := computeVaultMAC(v.key, v.records, v.reserved)
	if err == nil {
		err = v.store.PutContainer(id, rec, mac)
	}
	if err != nil {
		if hadOld {
			v.records[id] = old
		} else {
			delete(v.records, id)
		}
		return err
	}
	return nil
}

func (v *Vault) keyParams() storage.KeyParams {
	return storage.KeyParams{
		Salt: v.key.Salt,
		IV:   v.key.IV,
		KDF: storage.KDFParams{
			Time:        v.key.Params.Time,
			MemoryMB:    v.key.Params.MemoryMB,
			Parallelism: v.key.Params.Parallelism,
		},
	}
}

// verifyStoredMAC compares the persisted whole-vault MAC against one
// recomputed from the loaded records under the derived key.
func (v *Vault) verifyStoredMAC() (bool, error) {
	stored, err := v.store.GetVaultMAC()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	computed, err := computeVaultMAC(v.key, v.records, v.reserved)
	if err != nil {
		return false, err
	}
	return crypto.ConstantTimeCompare(stored, computed), nil
}

// computeVaultMAC chains the per-record tags, in ascending id order with
// the reserved records last, under an HMAC key derived from the master
// key and the vault iv. Wrong passwords fail this check even for a vault
// with no containers.
func computeVaultMAC(km *crypto.KeyMaterial, records map[int]storage.Record, reserved map[string]storage.Record) ([]byte, error) {
	macKey, err := km.MACKey()
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(macKey)

	h := hmac.New(sha256.New, macKey)
	for _, id := range sortedIDs(records) {
		h.Write(idAAD(id))
		h.Write(records[id].MAC)
	}
	for _, name := range []string{storage.ReservedCredential, storage.ReservedToken} {
		if rec, ok := reserved[name]; ok {
			h.Write([]byte(name))
			h.Write(rec.MAC)
		}
	}
	return h.Sum(nil), nil
}

func sortedIDs(records map[int]storage.Record) []int {
	ids := make([]int, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func isIntegrityFailure(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
