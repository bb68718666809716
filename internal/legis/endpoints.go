package legis

import "github.com/tigerroll/congresso/pkg/batch/adapter/api"

// Senado Federal (dadosabertos).
var (
	SenadoSenadores = api.Endpoint{Name: "senado.senadores", Path: "/senador/lista/legislatura/{legislatura}"}
	SenadoAutorias  = api.Endpoint{Name: "senado.autorias", Path: "/senador/{codigo}/autorias"}
	SenadoMesaSF    = api.Endpoint{Name: "senado.mesa_sf", Path: "/composicao/mesaSF"}
	SenadoMesaCN    = api.Endpoint{Name: "senado.mesa_cn", Path: "/composicao/mesaCN"}
)

// Câmara dos Deputados (dadosabertos/api/v2).
var (
	CamaraDeputados = api.Endpoint{
		Name:          "camara.deputados",
		Path:          "/deputados",
		DefaultParams: map[string]string{"ordenarPor": "nome"},
	}
	CamaraDeputado  = api.Endpoint{Name: "camara.deputado", Path: "/deputados/{id}"}
	CamaraDiscursos = api.Endpoint{
		Name:          "camara.discursos",
		Path:          "/deputados/{id}/discursos",
		DefaultParams: map[string]string{"ordenarPor": "dataHoraInicio"},
	}
	CamaraMesa = api.Endpoint{Name: "camara.mesa", Path: "/legislaturas/{legislatura}/mesa"}
)
