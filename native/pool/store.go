package pool

import (
	"encoding/json"
	"fmt"

	"iptpool/crypto"
	"iptpool/storage"
)

const poolRecordKeyPrefix = "pool/record/"

// record is the on-disk shape of a Pool: the Queue's unexported entries
// slice is not visible to encoding/json, so it is marshalled separately.
type record struct {
	Config               Config
	ReserveAssetMint     crypto.Address
	ShareMint            crypto.Address
	ReserveVault         crypto.Address
	CurrentExchangeRate  uint64
	TotalShareSupply     uint64
	TotalReserveHoldings uint64
	TotalAccumulatedFees uint64
	QueueCapacity        uint32
	QueueEntries         []PendingWithdrawal
}

// Store persists Pool records to a storage.Database keyed by the pool's
// deterministic address.
type Store struct {
	db storage.Database
}

// NewStore wraps a storage.Database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func poolKey(poolID crypto.Address) []byte {
	return []byte(poolRecordKeyPrefix + poolID.String())
}

// Save serializes and persists the pool under its reserve-asset-derived
// address.
func (s *Store) Save(poolID crypto.Address, p *Pool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("pool store: database not configured")
	}
	rec := record{
		Config:               p.Config,
		ReserveAssetMint:     p.ReserveAssetMint,
		ShareMint:            p.ShareMint,
		ReserveVault:         p.ReserveVault,
		CurrentExchangeRate:  p.CurrentExchangeRate,
		TotalShareSupply:     p.TotalShareSupply,
		TotalReserveHoldings: p.TotalReserveHoldings,
		TotalAccumulatedFees: p.TotalAccumulatedFees,
		QueueCapacity:        p.Queue.Capacity,
		QueueEntries:         p.Queue.Entries(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Put(poolKey(poolID), data)
}

// Load reads and deserializes the pool stored under the given address.
func (s *Store) Load(poolID crypto.Address) (*Pool, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("pool store: database not configured")
	}
	data, err := s.db.Get(poolKey(poolID))
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	p := &Pool{
		Config:               rec.Config,
		ReserveAssetMint:     rec.ReserveAssetMint,
		ShareMint:            rec.ShareMint,
		ReserveVault:         rec.ReserveVault,
		CurrentExchangeRate:  rec.CurrentExchangeRate,
		TotalShareSupply:     rec.TotalShareSupply,
		TotalReserveHoldings: rec.TotalReserveHoldings,
		TotalAccumulatedFees: rec.TotalAccumulatedFees,
	}
	p.Queue.Capacity = rec.QueueCapacity
	for _, entry := range rec.QueueEntries {
		p.Queue.entries = append(p.Queue.entries, entry)
	}
	return p, nil
}
