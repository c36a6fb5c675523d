package cloudinary

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildPublicID(t *testing.T) {
	at := time.Unix(1700000000, 0)

	cases := map[string]string{
		"abc-Evaluacion_ana_perez.txt": "abc-Evaluacion_ana_perez-1700000000.txt",
		"Evaluacion_José Núñez.txt":    "Evaluacion_Jos--N--ez-1700000000.txt",
		"reports\\final.TXT":           "final-1700000000.txt",
		"???":                          "report-1700000000.txt",
	}
	for input, expected := range cases {
		t.Run(input, func(t *testing.T) {
			require.Equal(t, expected, buildPublicID(input, at))
		})
	}
}

func TestBuildPublicIDKeepsEvaluationIDs(t *testing.T) {
	at := time.Unix(1700000000, 0)
	first := buildPublicID("s1-0b8f1e9a-6c1d-4f7e-9a51-3f2d8c7b6a10-evaluacion_a.txt", at)
	second := buildPublicID("s1-5e3c2a71-98b4-4d0f-8c62-7a1e9f0d4b23-evaluacion_a.txt", at)

	require.NotEqual(t, first, second)
	require.Equal(t, "s1-0b8f1e9a-6c1d-4f7e-9a51-3f2d8c7b6a10-evaluacion_a-1700000000.txt", first)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.ErrorIs(t, err, ErrMissingCredentials)

	archive, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/reports/"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "reports", archive.folder)
}
