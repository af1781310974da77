package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twym/internal/contacts/models"
)

func TestHash_FormattingInvariance(t *testing.T) {
	tests := []struct {
		name string
		a    [3]string
		b    [3]string
	}{
		{
			name: "email case and whitespace",
			a:    [3]string{"Jane Doe", "Jane.Doe@Example.COM", ""},
			b:    [3]string{"Jane Doe", "  jane.doe@example.com ", ""},
		},
		{
			name: "name punctuation noise",
			a:    [3]string{"Dr. Jane O'Neil", "j@x.com", ""},
			b:    [3]string{"dr jane oneil", "j@x.com", ""},
		},
		{
			name: "phone formatting",
			a:    [3]string{"", "", "+1 (234) 567-8900"},
			b:    [3]string{"", "", "12345678900"},
		},
		{
			name: "phone trailing space inside number",
			a:    [3]string{"", "", "1234567890 0"},
			b:    [3]string{"", "", "+1 (234) 567-8900"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t,
				Hash(tt.a[0], tt.a[1], tt.a[2]),
				Hash(tt.b[0], tt.b[1], tt.b[2]),
			)
		})
	}
}

func TestHash_DistinctIdentities(t *testing.T) {
	assert.NotEqual(t,
		Hash("Jane Doe", "jane@example.com", ""),
		Hash("Jane Doe", "john@example.com", ""),
	)
}

func TestHash_EmptyInputsGetRandomToken(t *testing.T) {
	first := Hash("", "", "")
	second := Hash("", "", "")

	require.Len(t, first, 32, "16 random bytes hex-encode to 32 chars")
	require.Len(t, second, 32)
	// Probabilistic, but a collision here means crypto/rand is broken.
	assert.NotEqual(t, first, second)

	// Whitespace-only input normalizes to empty and gets a token too.
	assert.Len(t, Hash("  ", " ", " - "), 32)
}

func TestHash_Deterministic(t *testing.T) {
	a := Hash("Jane", "jane@example.com", "555 0100")
	b := Hash("Jane", "jane@example.com", "5550100")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "sha-256 hex digest")
}

func contactWith(name, email, phone string) *models.Contact {
	c := &models.Contact{Name: name}
	if email != "" {
		c.Emails = []models.EmailAddress{{Address: email, Type: models.EmailPersonal}}
	}
	if phone != "" {
		c.Phones = []models.PhoneNumber{{Number: phone, Type: models.PhoneMobile}}
	}
	return c
}

func TestSimilarity(t *testing.T) {
	t.Run("identical contacts score 1", func(t *testing.T) {
		a := contactWith("Jane Doe", "JANE@example.com", "+1 (234) 567-8900")
		b := contactWith("jane doe", "jane@example.com", "12345678900")
		assert.Equal(t, 1.0, Similarity(a, b))
	})

	t.Run("no comparable fields scores 0", func(t *testing.T) {
		a := contactWith("Jane", "", "")
		b := contactWith("", "x@y.com", "")
		assert.Equal(t, 0.0, Similarity(a, b))
	})

	t.Run("substring name counts half", func(t *testing.T) {
		a := contactWith("Jane", "", "")
		b := contactWith("Jane Doe", "", "")
		assert.Equal(t, 0.5, Similarity(a, b))
	})

	t.Run("only shared fields are compared", func(t *testing.T) {
		a := contactWith("Jane Doe", "jane@example.com", "")
		b := contactWith("Jane Doe", "", "5550100")
		// Name is the only field present on both sides.
		assert.Equal(t, 1.0, Similarity(a, b))
	})

	t.Run("mismatched email drags score down", func(t *testing.T) {
		a := contactWith("Jane Doe", "jane@example.com", "")
		b := contactWith("Jane Doe", "other@example.com", "")
		assert.Equal(t, 0.5, Similarity(a, b))
	})
}
