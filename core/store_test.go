package core

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestSortedAddresses(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x0200")
	c := common.HexToAddress("0xff00000000000000000000000000000000000000")

	assert.True(t, lessAddress(a, b))
	assert.False(t, lessAddress(b, a))
	assert.False(t, lessAddress(a, a))
	assert.Equal(t, []common.Address{a, b, c}, sortedAddresses([]common.Address{c, a, b}))
}
