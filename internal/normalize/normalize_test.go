package normalize

import (
	"testing"
	"time"
)

// ============================================================================
// Code Tests
// ============================================================================

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain digits", "123", "123"},
		{"leading zeros stripped", "000123", "123"},
		{"whitespace trimmed", "  456 ", "456"},
		{"punctuation stripped", "12-34.5", "12345"},
		{"letters stripped", "ABC789", "789"},
		{"empty", "", ""},
		{"only spaces", "   ", ""},
		{"only zeros", "0000", ""},
		{"no digits", "cod.", ""},
		{"long barcode", "07891234567895", "7891234567895"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.in); got != tt.want {
				t.Errorf("Code(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCode_Idempotent(t *testing.T) {
	inputs := []string{
		"", "0", "007", "7891000", " 12 34 ", "abc", "1.234,56", "=\"0042\"",
		"7.891234E+12", "-15", "0a0b1", "\t\n",
	}

	for _, in := range inputs {
		once := Code(in)
		twice := Code(once)
		if once != twice {
			t.Errorf("Code not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

// ============================================================================
// Scientific Tests
// ============================================================================

func TestScientific(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"upper exponent", "7.891234E+12", "7891234000000"},
		{"lower exponent", "7.89123456789e+12", "7891234567890"},
		{"no exponent sign", "1.5E3", "1500"},
		{"plain barcode untouched", "7891000315507", "7891000315507"},
		{"leading zeros still stripped", "0007891", "7891"},
		{"empty", "", ""},
		{"garbage", "n/a", ""},
		{"exponent at bound", "1E+30", "1000000000000000000000000000000"},
		{"huge exponent", "1E+200000000", ""},
		{"huge negative exponent", "1E-200000000", ""},
		{"exponent overflows int", "1E+99999999999999999999", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Scientific(tt.in); got != tt.want {
				t.Errorf("Scientific(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScientific_HugeExponentReturnsQuickly(t *testing.T) {
	done := make(chan string, 1)
	go func() { done <- Scientific("7.891234E+200000000") }()

	select {
	case got := <-done:
		if got != "" {
			t.Errorf("Scientific() = %q, want empty", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Scientific() did not return for a huge exponent")
	}
}

// ============================================================================
// LocaleNumber Tests
// ============================================================================

func TestLocaleNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"machine integer", "100", 100},
		{"machine decimal", "100.5", 100.5},
		{"comma decimal", "100,50", 100.5},
		{"dot grouped comma decimal", "1.234,56", 1234.56},
		{"multi group", "1.234.567,8", 1234567.8},
		{"comma grouped dot decimal", "1,234.56", 1234.56},
		{"negative comma decimal", "-7,25", -7.25},
		{"excel formula prefix", "=\"12,5\"", 12.5},
		{"empty is zero", "", 0},
		{"garbage is zero", "abc", 0},
		{"mixed garbage is zero", "12abc", 0},
		{"nan is zero", "NaN", 0},
		{"inf is zero", "Inf", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocaleNumber(tt.in); got != tt.want {
				t.Errorf("LocaleNumber(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLocaleNumber_ReportsFailure(t *testing.T) {
	if _, ok := ParseLocaleNumber("12 boxes"); ok {
		t.Error("ParseLocaleNumber(\"12 boxes\") ok = true, want false")
	}
	if _, ok := ParseLocaleNumber("   "); ok {
		t.Error("ParseLocaleNumber(blank) ok = true, want false")
	}
	if v, ok := ParseLocaleNumber("90"); !ok || v != 90 {
		t.Errorf("ParseLocaleNumber(\"90\") = %v, %v; want 90, true", v, ok)
	}
}

// ============================================================================
// Label / Cell Tests
// ============================================================================

func TestLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"008 - Analgesicos", "ANALGESICOS"},
		{"12. dipirona sodica", "DIPIRONA SODICA"},
		{"Dipirona 500mg", "DIPIRONA 500MG"},
		{"   ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Label(tt.in); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`="00123"`, "00123"},
		{`=123`, "123"},
		{`"quoted"`, "quoted"},
		{`  padded  `, "padded"},
		{`'single'`, "single"},
	}

	for _, tt := range tests {
		if got := Cell(tt.in); got != tt.want {
			t.Errorf("Cell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ============================================================================
// Decimal helpers
// ============================================================================

func TestAdd2(t *testing.T) {
	if got := Add2(12.5, 7.25); got != 19.75 {
		t.Errorf("Add2(12.5, 7.25) = %v, want 19.75", got)
	}
	if got := Add2(0.1, 0.2); got != 0.3 {
		t.Errorf("Add2(0.1, 0.2) = %v, want 0.3", got)
	}
}

func TestEqual2(t *testing.T) {
	if !Equal2(100.5, 100.50) {
		t.Error("Equal2(100.5, 100.50) = false, want true")
	}
	if !Equal2(0.1+0.2, 0.3) {
		t.Error("Equal2(0.1+0.2, 0.3) = false, want true")
	}
	if Equal2(90, 100.5) {
		t.Error("Equal2(90, 100.5) = true, want false")
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(1.005); got != 1.01 {
		t.Errorf("Round2(1.005) = %v, want 1.01", got)
	}
	if got := Round2(3); got != 3 {
		t.Errorf("Round2(3) = %v, want 3", got)
	}
}
