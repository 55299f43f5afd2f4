package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"iptpool/config"
	"iptpool/crypto"
	gatewayauth "iptpool/gateway/auth"
	"iptpool/native/pool"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	command := os.Args[1]
	args := os.Args[2:]
	var err error
	switch command {
	case "generate-key":
		err = generateKey(args)
	case "address":
		err = showAddress(args)
	case "snapshot":
		err = snapshot(args)
	case "init":
		err = initPool(args)
	case "init-step2":
		err = initPoolStep2(args)
	case "deposit-reserve":
		err = adminDepositReserve(args)
	case "withdraw-reserve":
		err = adminWithdrawReserve(args)
	case "rate":
		err = updateExchangeRate(args)
	case "update-config":
		err = updateConfig(args)
	case "user-deposit":
		err = userDeposit(args)
	case "user-withdraw":
		err = userWithdraw(args)
	case "queue-withdraw":
		err = queueWithdraw(args)
	case "cancel-withdraw":
		err = cancelWithdraw(args)
	case "fees-withdraw":
		err = feesWithdraw(args)
	case "batch-withdraw":
		err = batchWithdraw(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		return
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: poolctl <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  generate-key <keystore_path> <passphrase>                  - Generates a key and saves it as a keystore")
	fmt.Println("  address <keystore_path> <passphrase>                      - Prints the address held by a keystore")
	fmt.Println("  snapshot <endpoint>                                       - Prints the pool's current state")
	fmt.Println("  init <endpoint> <engine_config> <reserve_asset_mint>      - Bootstraps the pool record")
	fmt.Println("  init-step2 <endpoint> <engine_config>                     - Derives the share-mint/reserve-vault addresses")
	fmt.Println("  deposit-reserve <endpoint> <engine_config> <amount>       - Admin-deposits reserve without minting shares")
	fmt.Println("  withdraw-reserve <endpoint> <engine_config> <amount>      - Admin-withdraws reserve holdings")
	fmt.Println("  rate <endpoint> <engine_config> <new_rate>                - Updates the exchange rate")
	fmt.Println("  update-config <endpoint> <engine_config>                  - Updates the pool config from the engine config file")
	fmt.Println("  user-deposit <endpoint> <user_addr> <reserve_in> <min_shares_out>")
	fmt.Println("  user-withdraw <endpoint> <user_addr> <shares_in> <min_reserve_out>")
	fmt.Println("  queue-withdraw <endpoint> <user_addr> <shares_in> <min_reserve_out>")
	fmt.Println("  cancel-withdraw <endpoint> <user_addr>")
	fmt.Println("  fees-withdraw <endpoint> <engine_config> <amount>")
	fmt.Println("  batch-withdraw <endpoint> <api_key> <hmac_secret> <executor_addr> <amounts_csv> <accounts_csv>")
	fmt.Println("                   accounts_csv is share_addr:reserve_addr pairs, comma-separated, aligned with amounts_csv")
}

func generateKey(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: generate-key <keystore_path> <passphrase>")
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(args[0], key, args[1]); err != nil {
		return fmt.Errorf("save keystore: %w", err)
	}
	fmt.Printf("Generated new key and saved keystore to %s\n", args[0])
	fmt.Printf("Address: %s\n", key.PubKey().Address().String())
	return nil
}

func showAddress(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: address <keystore_path> <passphrase>")
	}
	key, err := crypto.LoadFromKeystore(args[0], args[1])
	if err != nil {
		return fmt.Errorf("load keystore: %w", err)
	}
	fmt.Println(key.PubKey().Address().String())
	return nil
}

func snapshot(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: snapshot <endpoint>")
	}
	var out map[string]interface{}
	if err := doGet(args[0]+"/v1/pool", &out); err != nil {
		return err
	}
	encoded, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

func initPool(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: init <endpoint> <engine_config> <reserve_asset_mint>")
	}
	cfg, err := config.Load(args[1])
	if err != nil {
		return fmt.Errorf("load engine config: %w", err)
	}
	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		return fmt.Errorf("build pool config: %w", err)
	}
	admin, err := cfg.AdminPrivateKey()
	if err != nil {
		return err
	}
	body := map[string]interface{}{
		"signer":             admin.PubKey().Address().String(),
		"reserve_asset_mint": args[2],
		"config":             poolConfigDTO(poolCfg),
	}
	return doPost(args[0]+"/v1/pool/init", body, nil)
}

// poolConfigDTO mirrors gateway/routes/pool.go's poolConfigDTO wire shape.
func poolConfigDTO(cfg pool.Config) map[string]interface{} {
	return map[string]interface{}{
		"admin_authority":       cfg.AdminAuthority.String(),
		"oracle_authority":      cfg.OracleAuthority.String(),
		"fee_collector":         cfg.FeeCollector.String(),
		"deposit_fee_bps":       cfg.DepositFeeBps,
		"withdrawal_fee_bps":    cfg.WithdrawalFeeBps,
		"management_fee_bps":    cfg.ManagementFeeBps,
		"initial_exchange_rate": cfg.InitialExchangeRate,
		"max_total_supply":      cfg.MaxTotalSupply,
		"max_queue_size":        cfg.MaxQueueSize,
	}
}

func initPoolStep2(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: init-step2 <endpoint> <engine_config>")
	}
	cfg, err := config.Load(args[1])
	if err != nil {
		return fmt.Errorf("load engine config: %w", err)
	}
	admin, err := cfg.AdminPrivateKey()
	if err != nil {
		return err
	}
	return doPost(args[0]+"/v1/pool/init/step2", signerBody(admin.PubKey().Address()), nil)
}

func adminDepositReserve(args []string) error {
	return signerAmountCommand(args, "deposit-reserve", "/v1/pool/reserve/deposit", adminSigner)
}

func adminWithdrawReserve(args []string) error {
	return signerAmountCommand(args, "withdraw-reserve", "/v1/pool/reserve/withdraw", adminSigner)
}

func feesWithdraw(args []string) error {
	return signerAmountCommand(args, "fees-withdraw", "/v1/pool/fees/withdraw", feeCollectorSigner)
}

type signerFn func(cfg *config.Config) (crypto.Address, error)

func adminSigner(cfg *config.Config) (crypto.Address, error) {
	key, err := cfg.AdminPrivateKey()
	if err != nil {
		return crypto.Address{}, err
	}
	return key.PubKey().Address(), nil
}

func feeCollectorSigner(cfg *config.Config) (crypto.Address, error) {
	key, err := cfg.FeeCollectorPrivateKey()
	if err != nil {
		return crypto.Address{}, err
	}
	return key.PubKey().Address(), nil
}

func signerAmountCommand(args []string, name, path string, signer signerFn) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: %s <endpoint> <engine_config> <amount>", name)
	}
	cfg, err := config.Load(args[1])
	if err != nil {
		return fmt.Errorf("load engine config: %w", err)
	}
	addr, err := signer(cfg)
	if err != nil {
		return err
	}
	amount, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	body := map[string]interface{}{
		"signer": addr.String(),
		"amount": amount,
	}
	return doPost(args[0]+path, body, nil)
}

func updateExchangeRate(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: rate <endpoint> <engine_config> <new_rate>")
	}
	cfg, err := config.Load(args[1])
	if err != nil {
		return fmt.Errorf("load engine config: %w", err)
	}
	key, err := cfg.OraclePrivateKey()
	if err != nil {
		return err
	}
	newRate, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid rate: %w", err)
	}
	body := map[string]interface{}{
		"signer":   key.PubKey().Address().String(),
		"new_rate": newRate,
	}
	return doPost(args[0]+"/v1/pool/rate", body, nil)
}

func updateConfig(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: update-config <endpoint> <engine_config>")
	}
	cfg, err := config.Load(args[1])
	if err != nil {
		return fmt.Errorf("load engine config: %w", err)
	}
	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		return err
	}
	admin, err := cfg.AdminPrivateKey()
	if err != nil {
		return err
	}
	body := map[string]interface{}{
		"signer":     admin.PubKey().Address().String(),
		"new_config": poolConfigDTO(poolCfg),
	}
	return doPost(args[0]+"/v1/pool/config", body, nil)
}

func userDeposit(args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: user-deposit <endpoint> <user_addr> <reserve_in> <min_shares_out>")
	}
	reserveIn, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid reserve_in: %w", err)
	}
	minSharesOut, err := strconv.ParseUint(args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid min_shares_out: %w", err)
	}
	body := map[string]interface{}{
		"user":           args[1],
		"reserve_in":     reserveIn,
		"min_shares_out": minSharesOut,
	}
	return doPost(args[0]+"/v1/pool/deposit", body, nil)
}

func userWithdraw(args []string) error {
	return userWithdrawLike(args, "user-withdraw", "/v1/pool/withdraw")
}

func queueWithdraw(args []string) error {
	return userWithdrawLike(args, "queue-withdraw", "/v1/pool/withdraw/queue")
}

func userWithdrawLike(args []string, name, path string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: %s <endpoint> <user_addr> <shares_in> <min_reserve_out>", name)
	}
	sharesIn, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid shares_in: %w", err)
	}
	minReserveOut, err := strconv.ParseUint(args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid min_reserve_out: %w", err)
	}
	body := map[string]interface{}{
		"user":            args[1],
		"shares_in":       sharesIn,
		"min_reserve_out": minReserveOut,
	}
	return doPost(args[0]+path, body, nil)
}

func cancelWithdraw(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: cancel-withdraw <endpoint> <user_addr>")
	}
	return doPost(args[0]+"/v1/pool/withdraw/cancel", map[string]interface{}{"signer": args[1]}, nil)
}

func batchWithdraw(args []string) error {
	if len(args) < 6 {
		return fmt.Errorf("usage: batch-withdraw <endpoint> <api_key> <hmac_secret> <executor_addr> <amounts_csv> <accounts_csv>")
	}
	endpoint, apiKey, secret, executor := args[0], args[1], args[2], args[3]
	amountStrs := strings.Split(args[4], ",")
	amounts := make([]uint64, 0, len(amountStrs))
	for _, s := range amountStrs {
		amount, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", s, err)
		}
		amounts = append(amounts, amount)
	}
	pairStrs := strings.Split(args[5], ",")
	type account struct {
		ShareAccount   string
		ReserveAccount string
	}
	accounts := make([]account, 0, len(pairStrs))
	for _, pair := range pairStrs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid account pair %q, want share:reserve", pair)
		}
		accounts = append(accounts, account{ShareAccount: parts[0], ReserveAccount: parts[1]})
	}

	body := map[string]interface{}{
		"executor": executor,
		"amounts":  amounts,
		"accounts": accounts,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, endpoint+"/v1/pool/withdraw/batch", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	timestamp := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	nonce, err := randomNonce()
	if err != nil {
		return err
	}
	signature := gatewayauth.ComputeSignature(secret, timestamp, nonce, req.Method, req.URL.Path, payload)
	req.Header.Set(gatewayauth.HeaderAPIKey, apiKey)
	req.Header.Set(gatewayauth.HeaderTimestamp, timestamp)
	req.Header.Set(gatewayauth.HeaderNonce, nonce)
	req.Header.Set(gatewayauth.HeaderSignature, hex.EncodeToString(signature))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkResponse(resp, nil)
}

func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func signerBody(signer crypto.Address) map[string]interface{} {
	return map[string]interface{}{"signer": signer.String()}
}

func doGet(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkResponse(resp, out)
}

func doPost(url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp, out); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func checkResponse(resp *http.Response, out interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
