package config

import (
	"encoding/hex"
	"os"

	"iptpool/crypto"
	"iptpool/native/pool"

	"github.com/BurntSushi/toml"
)

// Config is the core engine's TOML configuration: the principals governing
// the pool and the parameters InitPool/AdminUpdateConfig accept. The
// admin/oracle/fee_collector private keys are stored here unencrypted, as
// hex strings, and are used to derive those principals' addresses for a
// single-operator standalone deployment, mirroring the
// teacher's auto-generate-if-missing validator key. poolctl reads this file
// to sign the bootstrap InitPool/InitPoolStep2 calls and to build the
// pool.Config the engine validates.
type Config struct {
	DataDir         string `toml:"DataDir"`
	AdminKey        string `toml:"AdminKey"`
	OracleKey       string `toml:"OracleKey"`
	FeeCollectorKey string `toml:"FeeCollectorKey"`
	// ReserveAssetMint is the bech32 address of the external reserve asset
	// this pool custodies. It is operator-supplied (the pool does not mint
	// or control this asset), but a fresh placeholder address is generated
	// for a standalone demo config so Load never fails on a missing value.
	ReserveAssetMint string `toml:"ReserveAssetMint"`

	DepositFeeBps       uint16 `toml:"DepositFeeBps"`
	WithdrawalFeeBps    uint16 `toml:"WithdrawalFeeBps"`
	ManagementFeeBps    uint16 `toml:"ManagementFeeBps"`
	InitialExchangeRate uint64 `toml:"InitialExchangeRate"`
	MaxTotalSupply      uint64 `toml:"MaxTotalSupply"`
	MaxQueueSize        uint32 `toml:"MaxQueueSize"`
}

// AdminPrivateKey decodes the configured admin key.
func (c *Config) AdminPrivateKey() (*crypto.PrivateKey, error) {
	return decodeKey(c.AdminKey)
}

// OraclePrivateKey decodes the configured oracle key.
func (c *Config) OraclePrivateKey() (*crypto.PrivateKey, error) {
	return decodeKey(c.OracleKey)
}

// FeeCollectorPrivateKey decodes the configured fee collector key.
func (c *Config) FeeCollectorPrivateKey() (*crypto.PrivateKey, error) {
	return decodeKey(c.FeeCollectorKey)
}

func decodeKey(hexKey string) (*crypto.PrivateKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, err
	}
	return crypto.PrivateKeyFromBytes(raw)
}

// ReserveAssetMintAddress decodes the configured reserve asset address.
func (c *Config) ReserveAssetMintAddress() (crypto.Address, error) {
	return crypto.DecodeAddress(c.ReserveAssetMint)
}

// PoolConfig builds the pool.Config InitPool/AdminUpdateConfig expect from
// this file's principals and parameters.
func (c *Config) PoolConfig() (pool.Config, error) {
	admin, err := c.AdminPrivateKey()
	if err != nil {
		return pool.Config{}, err
	}
	oracle, err := c.OraclePrivateKey()
	if err != nil {
		return pool.Config{}, err
	}
	feeCollector, err := c.FeeCollectorPrivateKey()
	if err != nil {
		return pool.Config{}, err
	}
	return pool.Config{
		AdminAuthority:      admin.PubKey().Address(),
		OracleAuthority:     oracle.PubKey().Address(),
		FeeCollector:        feeCollector.PubKey().Address(),
		DepositFeeBps:       c.DepositFeeBps,
		WithdrawalFeeBps:    c.WithdrawalFeeBps,
		ManagementFeeBps:    c.ManagementFeeBps,
		InitialExchangeRate: c.InitialExchangeRate,
		MaxTotalSupply:      c.MaxTotalSupply,
		MaxQueueSize:        c.MaxQueueSize,
	}, nil
}

// Load loads the configuration from the given path, generating a default
// file (with a fresh admin key) when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	dirty := false
	if cfg.AdminKey == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.AdminKey = hex.EncodeToString(key.Bytes())
		dirty = true
	}
	if cfg.OracleKey == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.OracleKey = hex.EncodeToString(key.Bytes())
		dirty = true
	}
	if cfg.FeeCollectorKey == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.FeeCollectorKey = hex.EncodeToString(key.Bytes())
		dirty = true
	}
	if cfg.ReserveAssetMint == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.ReserveAssetMint = key.PubKey().Address().String()
		dirty = true
	}
	if dirty {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, os.ModePerm)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	adminKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	oracleKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	feeCollectorKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	reserveAssetKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:             "./pool-data",
		AdminKey:            hex.EncodeToString(adminKey.Bytes()),
		OracleKey:           hex.EncodeToString(oracleKey.Bytes()),
		FeeCollectorKey:     hex.EncodeToString(feeCollectorKey.Bytes()),
		ReserveAssetMint:    reserveAssetKey.PubKey().Address().String(),
		DepositFeeBps:       0,
		WithdrawalFeeBps:    0,
		ManagementFeeBps:    0,
		InitialExchangeRate: 1_000_000,
		MaxTotalSupply:      0,
		MaxQueueSize:        10,
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
