package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/consts"
	"github.com/ava-labs/hypersdk/state"
	"github.com/ava-labs/hypersdk/state/metadata"

	smath "github.com/ava-labs/avalanchego/utils/math"
)

type ReadState func(context.Context, [][]byte) ([][]byte, []error)

const (
	balancePrefix     byte = metadata.DefaultMinimumPrefix
	configPrefix      byte = metadata.DefaultMinimumPrefix + 1
	vammListPrefix    byte = metadata.DefaultMinimumPrefix + 2
	positionPrefix    byte = metadata.DefaultMinimumPrefix + 3
	tmpPositionPrefix byte = metadata.DefaultMinimumPrefix + 4
)

const (
	BalanceChunks     uint16 = 1
	ConfigChunks      uint16 = 2
	VammListChunks    uint16 = 8
	PositionChunks    uint16 = 2
	TmpPositionChunks uint16 = 2
)

// MaxVammsPerList bounds the registry so the whole list fits in its chunk
// allocation. The registry is replaced wholesale, never merged.
const MaxVammsPerList = 15

const positionDigestLen = 32

// Position directions. AddToAmm is the long side (base flows into the AMM),
// RemoveFromAmm the short side.
const (
	DirectionAddToAmm      uint8 = 0
	DirectionRemoveFromAmm uint8 = 1
)

// VaultAddress holds collateral escrowed against open positions.
var VaultAddress = codec.CreateAddress(0xff, ids.Empty)

// Config is the engine's global configuration singleton. Ratios and the fee
// are unsigned fixed-point values scaled by Decimals; the store records the
// scale without interpreting it.
type Config struct {
	Owner                  codec.Address
	EligibleCollateral     codec.Address
	Decimals               uint64
	InitialMarginRatio     uint64
	MaintenanceMarginRatio uint64
	LiquidationFee         uint64
}

// Position is one trader's exposure on one vamm. The zero value (see
// DefaultPosition) is the canonical "no position" sentinel.
type Position struct {
	Vamm                  codec.Address
	Trader                codec.Address
	Direction             uint8
	Size                  uint64
	Margin                uint64
	Notional              uint64
	PremiumFraction       uint64
	LiquidityHistoryIndex uint64
	Timestamp             int64
}

// DefaultPosition returns the concrete zero position used by callers that
// need a value to do arithmetic on when no position exists. It is not a
// substitute for the absent-value result of GetPosition.
func DefaultPosition() Position {
	return Position{Direction: DirectionAddToAmm}
}

// ========== Balance ==========

func BalanceKey(addr codec.Address) (k []byte) {
	k = make([]byte, 1+codec.AddressLen+consts.Uint16Len)
	k[0] = balancePrefix
	copy(k[1:], addr[:])
	binary.BigEndian.PutUint16(k[1+codec.AddressLen:], BalanceChunks)
	return
}

func GetBalance(ctx context.Context, im state.Immutable, addr codec.Address) (uint64, error) {
	_, bal, _, err := getBalance(ctx, im, addr)
	return bal, err
}

func getBalance(ctx context.Context, im state.Immutable, addr codec.Address) ([]byte, uint64, bool, error) {
	k := BalanceKey(addr)
	bal, exists, err := innerGetBalance(im.GetValue(ctx, k))
	return k, bal, exists, err
}

func GetBalanceFromState(ctx context.Context, f ReadState, addr codec.Address) (uint64, error) {
	k := BalanceKey(addr)
	values, errs := f(ctx, [][]byte{k})
	bal, _, err := innerGetBalance(values[0], errs[0])
	return bal, err
}

func innerGetBalance(v []byte, err error) (uint64, bool, error) {
	if errors.Is(err, database.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	val, err := database.ParseUInt64(v)
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

func SetBalance(ctx context.Context, mu state.Mutable, addr codec.Address, balance uint64) error {
	k := BalanceKey(addr)
	return setBalance(ctx, mu, k, balance)
}

func setBalance(ctx context.Context, mu state.Mutable, key []byte, balance uint64) error {
	return mu.Insert(ctx, key, binary.BigEndian.AppendUint64(nil, balance))
}

func AddBalance(ctx context.Context, mu state.Mutable, addr codec.Address, amount uint64) (uint64, error) {
	key, bal, _, err := getBalance(ctx, mu, addr)
	if err != nil {
		return 0, err
	}
	nbal, err := smath.Add(bal, amount)
	if err != nil {
		return 0, fmt.Errorf("%w: could not add balance (bal=%d, addr=%v, amount=%d)", ErrInvalidBalance, bal, addr, amount)
	}
	return nbal, setBalance(ctx, mu, key, nbal)
}

func SubBalance(ctx context.Context, mu state.Mutable, addr codec.Address, amount uint64) (uint64, error) {
	key, bal, ok, err := getBalance(ctx, mu, addr)
	if !ok {
		return 0, fmt.Errorf("%w: could not subtract (bal=%d, addr=%v, amount=%d)", ErrInvalidBalance, 0, addr, amount)
	}
	if err != nil {
		return 0, err
	}
	nbal, err := smath.Sub(bal, amount)
	if err != nil {
		return 0, fmt.Errorf("%w: could not subtract balance (bal=%d < amount=%d, gap=%d, addr=%v)", ErrInvalidBalance, bal, amount, amount-bal, addr)
	}
	if nbal == 0 {
		return 0, mu.Remove(ctx, key)
	}
	return nbal, setBalance(ctx, mu, key, nbal)
}

// ========== Config ==========

func singletonKey(prefix byte, chunks uint16) []byte {
	k := make([]byte, 1+consts.Uint16Len)
	k[0] = prefix
	binary.BigEndian.PutUint16(k[1:], chunks)
	return k
}

func ConfigKey() []byte {
	return singletonKey(configPrefix, ConfigChunks)
}

// PutConfig replaces the configuration singleton. There is no partial
// update; gating who may call this belongs to the execution layer.
func PutConfig(ctx context.Context, mu state.Mutable, cfg Config) error {
	v := make([]byte, 0, codec.AddressLen*2+consts.Uint64Len*4)
	v = append(v, cfg.Owner[:]...)
	v = append(v, cfg.EligibleCollateral[:]...)
	v = binary.BigEndian.AppendUint64(v, cfg.Decimals)
	v = binary.BigEndian.AppendUint64(v, cfg.InitialMarginRatio)
	v = binary.BigEndian.AppendUint64(v, cfg.MaintenanceMarginRatio)
	v = binary.BigEndian.AppendUint64(v, cfg.LiquidationFee)
	return mu.Insert(ctx, ConfigKey(), v)
}

// GetConfig returns the configuration singleton. A missing record is a
// lifecycle error (genesis must write it first) and surfaces as
// ErrConfigNotFound rather than a default.
func GetConfig(ctx context.Context, im state.Immutable) (Config, error) {
	v, err := im.GetValue(ctx, ConfigKey())
	if errors.Is(err, database.ErrNotFound) {
		return Config{}, ErrConfigNotFound
	}
	if err != nil {
		return Config{}, err
	}
	return parseConfig(v)
}

func GetConfigFromState(ctx context.Context, f ReadState) (Config, error) {
	values, errs := f(ctx, [][]byte{ConfigKey()})
	if errors.Is(errs[0], database.ErrNotFound) {
		return Config{}, ErrConfigNotFound
	}
	if errs[0] != nil {
		return Config{}, errs[0]
	}
	return parseConfig(values[0])
}

func parseConfig(v []byte) (Config, error) {
	minLen := codec.AddressLen*2 + consts.Uint64Len*4
	if len(v) < minLen {
		return Config{}, fmt.Errorf("%w: config length %d < %d", ErrInvalidConfigData, len(v), minLen)
	}
	var cfg Config
	copy(cfg.Owner[:], v[:codec.AddressLen])
	copy(cfg.EligibleCollateral[:], v[codec.AddressLen:codec.AddressLen*2])
	offset := codec.AddressLen * 2
	cfg.Decimals = binary.BigEndian.Uint64(v[offset : offset+consts.Uint64Len])
	offset += consts.Uint64Len
	cfg.InitialMarginRatio = binary.BigEndian.Uint64(v[offset : offset+consts.Uint64Len])
	offset += consts.Uint64Len
	cfg.MaintenanceMarginRatio = binary.BigEndian.Uint64(v[offset : offset+consts.Uint64Len])
	offset += consts.Uint64Len
	cfg.LiquidationFee = binary.BigEndian.Uint64(v[offset : offset+consts.Uint64Len])
	return cfg, nil
}

// ========== Vamm registry ==========

func VammListKey() []byte {
	return singletonKey(vammListPrefix, VammListChunks)
}

// MapValidate validates every raw address, failing on the first invalid
// entry so the caller performs no partial write.
func MapValidate(raw []string) ([]codec.Address, error) {
	vamms := make([]codec.Address, len(raw))
	for i, s := range raw {
		addr, err := codec.StringToAddress(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		vamms[i] = addr
	}
	return vamms, nil
}

// SetVamms validates the raw addresses and replaces the registry wholesale,
// preserving input order. Any invalid entry aborts with no state change.
// Duplicates are tolerated (membership is a linear scan); callers should
// deduplicate.
func SetVamms(ctx context.Context, mu state.Mutable, raw []string) ([]codec.Address, error) {
	vamms, err := MapValidate(raw)
	if err != nil {
		return nil, err
	}
	if err := PutVammList(ctx, mu, vamms); err != nil {
		return nil, err
	}
	return vamms, nil
}

func PutVammList(ctx context.Context, mu state.Mutable, vamms []codec.Address) error {
	if len(vamms) > MaxVammsPerList {
		return fmt.Errorf("%w: %d > %d", ErrVammListTooLarge, len(vamms), MaxVammsPerList)
	}
	v := make([]byte, 0, consts.Uint16Len+codec.AddressLen*len(vamms))
	v = binary.BigEndian.AppendUint16(v, uint16(len(vamms)))
	for _, vamm := range vamms {
		v = append(v, vamm[:]...)
	}
	return mu.Insert(ctx, VammListKey(), v)
}

func GetVammList(ctx context.Context, im state.Immutable) ([]codec.Address, error) {
	v, err := im.GetValue(ctx, VammListKey())
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrVammListNotFound
	}
	if err != nil {
		return nil, err
	}
	return parseVammList(v)
}

func GetVammListFromState(ctx context.Context, f ReadState) ([]codec.Address, error) {
	values, errs := f(ctx, [][]byte{VammListKey()})
	if errors.Is(errs[0], database.ErrNotFound) {
		return nil, ErrVammListNotFound
	}
	if errs[0] != nil {
		return nil, errs[0]
	}
	return parseVammList(values[0])
}

func parseVammList(v []byte) ([]codec.Address, error) {
	if len(v) < consts.Uint16Len {
		return nil, fmt.Errorf("%w: vamm list length %d", ErrInvalidVammListData, len(v))
	}
	count := int(binary.BigEndian.Uint16(v[:consts.Uint16Len]))
	if count > MaxVammsPerList || len(v) != consts.Uint16Len+count*codec.AddressLen {
		return nil, fmt.Errorf("%w: count=%d len=%d", ErrInvalidVammListData, count, len(v))
	}
	vamms := make([]codec.Address, count)
	for i := 0; i < count; i++ {
		offset := consts.Uint16Len + i*codec.AddressLen
		copy(vamms[i][:], v[offset:offset+codec.AddressLen])
	}
	return vamms, nil
}

// IsRegisteredVamm reports whether addr occurs in the stored registry. The
// scan is O(n) by exact byte equality; no normalization is applied.
func IsRegisteredVamm(ctx context.Context, im state.Immutable, addr codec.Address) (bool, error) {
	vamms, err := GetVammList(ctx, im)
	if err != nil {
		return false, err
	}
	for _, vamm := range vamms {
		if vamm == addr {
			return true, nil
		}
	}
	return false, nil
}

// ========== Position ==========

// PositionKey derives the storage key for a (vamm, trader) pair as the
// SHA3-256 digest of the raw vamm bytes followed by the raw trader bytes.
// The mapping is one-way: positions cannot be enumerated by vamm or trader
// without a secondary index. Keep this bit-exact; external tooling
// reproduces these keys.
func PositionKey(vamm codec.Address, trader codec.Address) (k []byte) {
	h := sha3.New256()
	h.Write(vamm[:])
	h.Write(trader[:])

	k = make([]byte, 1+positionDigestLen+consts.Uint16Len)
	k[0] = positionPrefix
	copy(k[1:], h.Sum(nil))
	binary.BigEndian.PutUint16(k[1+positionDigestLen:], PositionChunks)
	return
}

// PutPosition writes the full record at the key derived from the record's
// own vamm and trader, unconditionally overwriting any prior value. Last
// writer wins; serialization across operations is the host's concern.
func PutPosition(ctx context.Context, mu state.Mutable, position Position) error {
	return mu.Insert(ctx, PositionKey(position.Vamm, position.Trader), encodePosition(position))
}

// GetPosition returns the stored position for (vamm, trader), with a false
// second return when no record exists. Absence is not an error.
func GetPosition(ctx context.Context, im state.Immutable, vamm codec.Address, trader codec.Address) (Position, bool, error) {
	v, err := im.GetValue(ctx, PositionKey(vamm, trader))
	if errors.Is(err, database.ErrNotFound) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, err
	}
	position, err := parsePosition(v)
	if err != nil {
		return Position{}, false, err
	}
	return position, true, nil
}

func GetPositionFromState(ctx context.Context, f ReadState, vamm codec.Address, trader codec.Address) (Position, bool, error) {
	values, errs := f(ctx, [][]byte{PositionKey(vamm, trader)})
	if errors.Is(errs[0], database.ErrNotFound) {
		return Position{}, false, nil
	}
	if errs[0] != nil {
		return Position{}, false, errs[0]
	}
	position, err := parsePosition(values[0])
	if err != nil {
		return Position{}, false, err
	}
	return position, true, nil
}

func encodePosition(position Position) []byte {
	v := make([]byte, 0, codec.AddressLen*2+1+consts.Uint64Len*6)
	v = append(v, position.Vamm[:]...)
	v = append(v, position.Trader[:]...)
	v = append(v, position.Direction)
	v = binary.BigEndian.AppendUint64(v, position.Size)
	v = binary.BigEndian.AppendUint64(v, position.Margin)
	v = binary.BigEndian.AppendUint64(v, position.Notional)
	v = binary.BigEndian.AppendUint64(v, position.PremiumFraction)
	v = binary.BigEndian.AppendUint64(v, position.LiquidityHistoryIndex)
	v = binary.BigEndian.AppendUint64(v, uint64(position.Timestamp))
	return v
}

func parsePosition(v []byte) (Position, error) {
	minLen := codec.AddressLen*2 + 1 + consts.Uint64Len*6
	if len(v) < minLen {
		return Position{}, fmt.Errorf("%w: position length %d < %d", ErrInvalidPositionData, len(v), minLen)
	}
	var position Position
	copy(position.Vamm[:], v[:codec.AddressLen])
	copy(position.Trader[:], v[codec.AddressLen:codec.AddressLen*2])
	offset := codec.AddressLen * 2
	position.Direction = v[offset]
	offset++
	position.Size = binary.BigEndian.Uint64(v[offset : offset+consts.Uint64Len])
	offset += consts.Uint64Len
	position.Margin = binary.BigEndian.Uint64(v[offset : offset+consts.Uint64Len])
	offset += consts.Uint64Len
	position.Notional = binary.BigEndian.Uint64(v[offset : offset+consts.Uint64Len])
	offset += consts.Uint64Len
	position.PremiumFraction = binary.BigEndian.Uint64(v[offset : offset+consts.Uint64Len])
	offset += consts.Uint64Len
	position.LiquidityHistoryIndex = binary.BigEndian.Uint64(v[offset : offset+consts.Uint64Len])
	offset += consts.Uint64Len
	position.Timestamp = int64(binary.BigEndian.Uint64(v[offset : offset+consts.Uint64Len]))
	return position, nil
}

// ========== Tentative position ==========

// The tentative slot is a single unkeyed singleton: at most one position may
// be in flight across the whole engine. Safe only because every stage/clear
// pair happens inside one atomic host transaction; callers must clear before
// the transaction ends.

func TmpPositionKey() []byte {
	return singletonKey(tmpPositionPrefix, TmpPositionChunks)
}

func PutTmpPosition(ctx context.Context, mu state.Mutable, position Position) error {
	return mu.Insert(ctx, TmpPositionKey(), encodePosition(position))
}

func GetTmpPosition(ctx context.Context, im state.Immutable) (Position, bool, error) {
	v, err := im.GetValue(ctx, TmpPositionKey())
	if errors.Is(err, database.ErrNotFound) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, err
	}
	position, err := parsePosition(v)
	if err != nil {
		return Position{}, false, err
	}
	return position, true, nil
}

// RemoveTmpPosition clears the slot; clearing an empty slot is a no-op.
func RemoveTmpPosition(ctx context.Context, mu state.Mutable) error {
	return mu.Remove(ctx, TmpPositionKey())
}
