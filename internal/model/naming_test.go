package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Boulangerie-Pâtisserie", "boulangerie patisserie"},
		{"CRÈMERIE  DU  MARCHÉ", "cremerie du marche"},
		{"L'Épicerie", "l epicerie"},
		{"Café des Sports", "cafe des sports"},
		{"  Tabac --- Presse  ", "tabac presse"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), tt.in)
	}
}

func TestNormalizeName_HyphenInsensitive(t *testing.T) {
	assert.Equal(t, NormalizeName("Brasserie du Centre-Ville"), NormalizeName("BRASSERIE DU CENTRE VILLE"))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Boulangerie Pâtisserie", "boulangerie-patisserie"},
		{"L'Épicerie du Coin", "l-epicerie-du-coin"},
		{"Tabac & Presse 2000", "tabac-presse-2000"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestIsHumanSource(t *testing.T) {
	assert.True(t, (&Erp{Source: SourcePublic}).IsHumanSource())
	assert.True(t, (&Erp{Source: SourceAdmin}).IsHumanSource())
	assert.False(t, (&Erp{Source: SourceGendarmerie}).IsHumanSource())
	assert.False(t, (&Erp{Source: SourceSirene}).IsHumanSource())
}
