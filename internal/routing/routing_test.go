package routing

import (
	"testing"

	"whatsapp-router/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func TestResolveNoCandidates(t *testing.T) {
	d := Resolve(nil)
	assert.Equal(t, Unassigned, d.State())
	assert.Nil(t, d.Next.ProjectID)
	assert.False(t, d.Next.Pending)
	assert.Empty(t, d.Next.Available)
	assert.Empty(t, d.Replies)
}

func TestResolveSingleCandidate(t *testing.T) {
	d := Resolve([]models.Project{{ID: 7, Name: "Igreja Central"}})

	assert.Equal(t, Assigned, d.State())
	require.NotNil(t, d.Next.ProjectID)
	assert.Equal(t, uint(7), *d.Next.ProjectID)
	assert.Empty(t, d.Next.Available)
	assert.Equal(t, []string{"✅ Número encontrado! Você foi detectado no projeto: *Igreja Central*"}, d.Replies)
}

func TestResolveMultipleCandidates(t *testing.T) {
	d := Resolve([]models.Project{{ID: 9, Name: "Nine"}, {ID: 3, Name: "Three"}, {ID: 9, Name: "Nine"}})

	assert.Equal(t, PendingSelection, d.State())
	assert.Nil(t, d.Next.ProjectID)
	assert.Equal(t, []uint{3, 9}, d.Next.Available)
	require.Len(t, d.Replies, 1)
	assert.Equal(t,
		"Você está cadastrado em múltiplos projetos. Por favor, escolha sobre qual projeto deseja falar:\n\n"+
			"3 - Three\n9 - Nine\n"+
			"\nDigite o número do projeto que deseja discutir.",
		d.Replies[0])
}

func TestChoose(t *testing.T) {
	pending := Assignment{Pending: true, Available: []uint{3, 9}}
	names := map[uint]string{3: "Three", 9: "Nine"}

	t.Run("offered id assigns", func(t *testing.T) {
		d := Choose(pending, " 9 ", names)
		assert.Equal(t, Assigned, d.State())
		assert.Equal(t, uint(9), *d.Next.ProjectID)
		assert.False(t, d.Next.Pending)
		assert.Empty(t, d.Next.Available)
		assert.Equal(t, []string{"Perfeito! Agora vamos falar sobre o projeto: Nine. Como posso ajudá-lo?"}, d.Replies)
	})

	for _, text := range []string{"5", "abc", "9abc", "-3", "3.0", ""} {
		t.Run("rejects "+text, func(t *testing.T) {
			d := Choose(pending, text, names)
			assert.Equal(t, PendingSelection, d.State())
			assert.Equal(t, pending, d.Next)
			assert.Equal(t, []string{"Opção inválida. Por favor, escolha um dos números listados."}, d.Replies)
		})
	}
}

func TestAssignmentState(t *testing.T) {
	assert.Equal(t, Unassigned, Assignment{}.State())
	assert.Equal(t, Assigned, Assignment{ProjectID: uintPtr(1)}.State())
	assert.Equal(t, PendingSelection, Assignment{Pending: true, Available: []uint{1, 2}}.State())
	assert.Equal(t, Unassigned, Assignment{Pending: true}.State())
}

func TestFromContact(t *testing.T) {
	c := &models.Contact{PendingProjectSelection: true, AvailableProjectIDs: []uint{4, 5}}
	a := FromContact(c)
	assert.Equal(t, PendingSelection, a.State())

	a.Available[0] = 99
	assert.Equal(t, uint(4), c.AvailableProjectIDs[0])
}

func TestGreetings(t *testing.T) {
	g := Greetings("Alessandro")
	require.Len(t, g, 2)
	assert.Equal(t, "Olá! Você está falando com o Bot de WhatsApp de Alessandro. 👋", g[0])
	assert.Contains(t, g[1], "Estamos conferindo")
}
