package legis_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/congresso/internal/legis"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/core/processor"
)

func autoria(codigo, sigla, numero, ano string, principal bool) map[string]any {
	indicador := "Não"
	if principal {
		indicador = "Sim"
	}
	return map[string]any{
		"IndicadorAutorPrincipal": indicador,
		"DescricaoTipoAutor":      "Senador",
		"Materia": map[string]any{
			"Codigo": codigo,
			"Sigla":  sigla,
			"Numero": numero,
			"Ano":    ano,
			"Ementa": "Altera a Lei " + numero,
			"Data":   ano + "-03-10",
		},
	}
}

func autoriasPayload(autorias any) map[string]any {
	return map[string]any{"MateriasAutoriaParlamentar": map[string]any{"Parlamentar": map[string]any{
		"IdentificacaoParlamentar": map[string]any{"CodigoParlamentar": "5012", "NomeParlamentar": "Senadora X"},
		"Autorias":                 map[string]any{"Autoria": autorias},
	}}}
}

func parlamentar(codigo, nome string) map[string]any {
	return map[string]any{"IdentificacaoParlamentar": map[string]any{
		"CodigoParlamentar":       codigo,
		"NomeParlamentar":         nome,
		"SiglaPartidoParlamentar": "PT",
		"UfParlamentar":           "SP",
	}}
}

// senadoFake lists three senators: 5012 authored four bills over three years, 5529 authored
// nothing (every window answers not found) and 6001 always fails upstream.
func senadoFake(t *testing.T, calls *callLog, windows *[]string) string {
	srv := newServer(t, calls, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/senador/lista/legislatura/57":
			writeJSON(w, map[string]any{"ListaParlamentarLegislatura": map[string]any{
				"Metadados": map[string]any{"Versao": "7"},
				"Parlamentares": map[string]any{"Parlamentar": []any{
					parlamentar("5012", "Senadora X"),
					parlamentar("5529", "Senador Y"),
					parlamentar("5012", "Senadora X"),
					parlamentar("6001", "Senador Z"),
				}},
			}})
		case "/senador/5012/autorias":
			if windows != nil {
				calls.mu.Lock()
				*windows = append(*windows, q.Get("dataInicio")+"-"+q.Get("dataFim"))
				calls.mu.Unlock()
			}
			switch q.Get("dataInicio")[:4] {
			case "2023":
				writeJSON(w, autoriasPayload([]any{
					autoria("100", "PL", "1", "2023", true),
					autoria("101", "PEC", "2", "2023", false),
				}))
			case "2024":
				writeJSON(w, autoriasPayload([]any{
					autoria("101", "PEC", "2", "2023", false),
					autoria("102", "PL", "3", "2024", true),
				}))
			case "2025":
				writeJSON(w, autoriasPayload(autoria("103", "PLP", "4", "2025", true)))
			default:
				http.NotFound(w, r)
			}
		case "/senador/5529/autorias":
			http.NotFound(w, r)
		case "/senador/6001/autorias":
			http.Error(w, "internal error", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	})
	return srv.URL
}

func TestMateriasCrawlsYearlyWindows(t *testing.T) {
	calls := &callLog{}
	var windows []string
	h := newHarness(t, senadoFake(t, calls, &windows), "")

	res := h.run(t, legis.NameMaterias, model.RunOptionsInput{})

	require.Equal(t, model.ResultPartial, res.Status, res.Error)
	assert.Equal(t, 0, res.Status.ExitCode())
	assert.EqualValues(t, 3, res.Stats.Total)
	assert.EqualValues(t, 2, res.Stats.Successes)
	assert.EqualValues(t, 1, res.Stats.Failures)
	assert.EqualValues(t, 1, res.Stats.Warnings)
	assert.EqualValues(t, 1, res.Stats.Loaded)

	assert.ElementsMatch(t, []string{
		"20230201-20231231", "20240101-20241231", "20250101-20251231", "20260101-20261231", "20270101-20270131",
	}, windows)
	assert.Equal(t, 5, calls.count("/senador/5529/autorias"))
	// first window exhausts its two attempts and aborts the senator
	assert.Equal(t, 2, calls.count("/senador/6001/autorias"))

	assert.Equal(t, []string{"congressoData/57/materias/5012"}, h.store.Paths())
	var doc legis.MateriasDocument
	h.doc(t, "congressoData/57/materias/5012", &doc)
	assert.Equal(t, "Senadora X", doc.Nome)
	assert.Equal(t, 4, doc.TotalMaterias)
	assert.Equal(t, map[string]int{"PL": 2, "PEC": 1, "PLP": 1}, doc.PorTipo)
	assert.Equal(t, map[string]int{"2023": 2, "2024": 1, "2025": 1}, doc.PorAno)

	codes := make([]string, 0, len(doc.Materias))
	for _, m := range doc.Materias {
		codes = append(codes, m.Codigo)
	}
	assert.Equal(t, []string{"100", "101", "102", "103"}, codes)
	assert.True(t, doc.Materias[0].AutorPrincipal)
	assert.False(t, doc.Materias[1].AutorPrincipal)
	assert.Equal(t, "PEC 2/2023", doc.Materias[1].Identificacao)
}

func TestMateriasExplicitRangeAndSenator(t *testing.T) {
	calls := &callLog{}
	var windows []string
	h := newHarness(t, senadoFake(t, calls, &windows), "")

	res := h.run(t, legis.NameMaterias, model.RunOptionsInput{
		EntityID: "5012",
		Start:    mustDate(t, "2024-06-01"),
		End:      mustDate(t, "2025-02-15"),
	})

	require.Equal(t, model.ResultSuccess, res.Status, res.Error)
	assert.Zero(t, calls.count("/senador/lista/legislatura/57"))
	assert.Equal(t, []string{"20240601-20241231", "20250101-20250215"}, windows)

	var doc legis.MateriasDocument
	h.doc(t, "congressoData/57/materias/5012", &doc)
	// the name comes from the authorship payload when the list was not fetched
	assert.Equal(t, "Senadora X", doc.Nome)
	assert.Equal(t, 3, doc.TotalMaterias)
}

func TestMateriasRejectsUnknownProcessorName(t *testing.T) {
	_, err := legis.NewJob("votacoes", legis.Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown processor votacoes")
}

func TestMateriasFailsWithoutStore(t *testing.T) {
	h := newHarness(t, "http://senado.invalid", "")
	sources, err := legis.NewSources(h.cfg, nil, nil)
	require.NoError(t, err)
	job, err := legis.NewJob(legis.NameMaterias, legis.Deps{Config: h.cfg, Sources: sources})
	require.NoError(t, err)

	opts, err := model.NewRunOptions(model.RunOptionsInput{Legislature: 57})
	require.NoError(t, err)
	res := job(context.Background(), processor.NewProcessingContext(opts))

	assert.Equal(t, model.ResultError, res.Status)
	assert.Equal(t, model.PhaseValidate, res.FailedPhase)
	assert.Contains(t, res.Hint, "--destino")
}
