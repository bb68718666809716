package legis_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/congresso/internal/legis"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
)

func TestMesasLoadsEachBoard(t *testing.T) {
	calls := &callLog{}
	senado := newServer(t, calls, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/composicao/mesaSF":
			writeJSON(w, map[string]any{"MesaSF": map[string]any{"Membros": map[string]any{"Membro": []any{
				map[string]any{
					"DescricaoCargo": "Presidente",
					"IdentificacaoParlamentar": map[string]any{
						"CodigoParlamentar":       "4981",
						"NomeParlamentar":         "Senador P",
						"SiglaPartidoParlamentar": "PSD",
						"UfParlamentar":           "MG",
					},
				},
				map[string]any{
					"DescricaoCargo":           "1º Secretário",
					"IdentificacaoParlamentar": map[string]any{"CodigoParlamentar": "5000", "NomeParlamentar": "Senador S"},
				},
			}}}})
		default:
			http.NotFound(w, r)
		}
	})
	camara := newServer(t, calls, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/legislaturas/57/mesa" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{"dados": []any{map[string]any{
			"id": 204554, "nome": "Deputado P", "siglaPartido": "PP", "siglaUf": "AL",
			"titulo": "Presidente", "dataInicio": "2023-02-01", "dataFim": nil,
		}}})
	})
	h := newHarness(t, senado.URL, camara.URL)

	res := h.run(t, legis.NameMesas, model.RunOptionsInput{})

	require.Equal(t, model.ResultSuccess, res.Status, res.Error)
	assert.EqualValues(t, 3, res.Stats.Total)
	assert.EqualValues(t, 2, res.Stats.Successes)
	assert.EqualValues(t, 1, res.Stats.Warnings, "the missing congress board is skipped")
	assert.Equal(t, []string{"congressoData/57/mesas/camara", "congressoData/57/mesas/senado"}, h.store.Paths())

	var sf legis.MesaDocument
	h.doc(t, "congressoData/57/mesas/senado", &sf)
	assert.Equal(t, 2, sf.TotalMembros)
	assert.Equal(t, legis.MembroMesa{Cargo: "Presidente", Codigo: "4981", Nome: "Senador P", Partido: "PSD", UF: "MG"}, sf.Membros[0])

	var cd legis.MesaDocument
	h.doc(t, "congressoData/57/mesas/camara", &cd)
	require.Len(t, cd.Membros, 1)
	assert.Equal(t, legis.MembroMesa{Cargo: "Presidente", Codigo: "204554", Nome: "Deputado P", Partido: "PP", UF: "AL", Inicio: "2023-02-01"}, cd.Membros[0])
}

func TestMesasRejectsEntityFilter(t *testing.T) {
	h := newHarness(t, "", "")

	res := h.run(t, legis.NameMesas, model.RunOptionsInput{EntityID: "5012"})

	assert.Equal(t, model.ResultError, res.Status)
	assert.Equal(t, model.PhaseValidate, res.FailedPhase)
	assert.Contains(t, res.Hint, "drop --senador/--deputado")
}
