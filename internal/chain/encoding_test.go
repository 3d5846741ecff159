package chain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes32RoundTrip(t *testing.T) {
	b, err := FormatBytes32String("Captain Ledger")
	require.NoError(t, err)
	assert.Equal(t, "Captain Ledger", ParseBytes32String(b))

	full, err := FormatBytes32String(strings.Repeat("x", 31))
	require.NoError(t, err)
	assert.Len(t, ParseBytes32String(full), 31)

	_, err = FormatBytes32String(strings.Repeat("x", 32))
	assert.Error(t, err)
}

func TestTruncateBytes32_KeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("a", 30) + "é"
	out := TruncateBytes32(s)
	assert.Equal(t, strings.Repeat("a", 30), out)

	assert.Equal(t, "short", TruncateBytes32("short"))
}

func TestUnits(t *testing.T) {
	v, err := ParseUSDC("50")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50_000_000), v)

	v, err = ParseUSDC("0.000001")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), v)

	_, err = ParseUSDC("0.0000001")
	assert.Error(t, err)
	_, err = ParseUSDC("-1")
	assert.Error(t, err)
	_, err = ParseUSDC("abc")
	assert.Error(t, err)

	assert.Equal(t, "50 USDC", USDCLabel(big.NewInt(50_000_000)))
	assert.Equal(t, "12.5", FormatUSDC(big.NewInt(12_500_000)))

	wei, err := ParseEther("1.5")
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", wei.String())
	assert.Equal(t, "1.5", FormatEther(wei))
	assert.Equal(t, "0", FormatUSDC(nil))
}
