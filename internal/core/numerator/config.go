// Package numerator provides domain contracts for sequential numbering of
// receipts and gateway orders.
package numerator

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict increments the sequence row for every number.
	// Run inside the business transaction it is gap-free: a rollback
	// returns the number. Used for payment receipts.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges of numbers in memory.
	// Faster, but restarts leave gaps. Used for gateway order references.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "REC", "ORD")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns yearly-reset numbering with a five digit counter.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// ReceiptConfig numbers payment receipts: REC-2026-00001.
func ReceiptConfig() Config {
	return DefaultConfig("REC")
}

// OrderConfig numbers gateway order references: ORD-2026-000001.
func OrderConfig() Config {
	cfg := DefaultConfig("ORD")
	cfg.PadWidth = 6
	return cfg
}
