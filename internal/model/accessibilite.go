package model

import (
	"math"
	"time"

	"github.com/acceslibre/erp-cli/internal/schema"
)

// Accessibilite is the structured accessibility questionnaire attached to one
// establishment. Field names map 1:1 to registry keys and to persisted column
// names; that mapping is part of the export/import compatibility surface.
type Accessibilite struct {
	ErpID string `json:"erp_id"`

	// Transport
	TransportStationPresence *bool  `json:"transport_station_presence"`
	TransportInformation     string `json:"transport_information"`

	// Stationnement
	StationnementPresence    *bool `json:"stationnement_presence"`
	StationnementPMR         *bool `json:"stationnement_pmr"`
	StationnementExtPresence *bool `json:"stationnement_ext_presence"`
	StationnementExtPMR      *bool `json:"stationnement_ext_pmr"`

	// Cheminement extérieur
	CheminementExtPresence             *bool  `json:"cheminement_ext_presence"`
	CheminementExtTerrainStable        *bool  `json:"cheminement_ext_terrain_stable"`
	CheminementExtPlainPied            *bool  `json:"cheminement_ext_plain_pied"`
	CheminementExtAscenseur            *bool  `json:"cheminement_ext_ascenseur"`
	CheminementExtNombreMarches        *int   `json:"cheminement_ext_nombre_marches"`
	CheminementExtSensMarches          string `json:"cheminement_ext_sens_marches"`
	CheminementExtReperageMarches      *bool  `json:"cheminement_ext_reperage_marches"`
	CheminementExtMainCourante         *bool  `json:"cheminement_ext_main_courante"`
	CheminementExtRampe                string `json:"cheminement_ext_rampe"`
	CheminementExtPentePresence        *bool  `json:"cheminement_ext_pente_presence"`
	CheminementExtPenteDegreDifficulte string `json:"cheminement_ext_pente_degre_difficulte"`
	CheminementExtPenteLongueur        string `json:"cheminement_ext_pente_longueur"`
	CheminementExtDevers               string `json:"cheminement_ext_devers"`
	CheminementExtBandeGuidage         *bool  `json:"cheminement_ext_bande_guidage"`
	CheminementExtRetrecissement       *bool  `json:"cheminement_ext_retrecissement"`

	// Entrée
	EntreeReperage            *bool    `json:"entree_reperage"`
	EntreeVitree              *bool    `json:"entree_vitree"`
	EntreeVitreeVitrophanie   *bool    `json:"entree_vitree_vitrophanie"`
	EntreePlainPied           *bool    `json:"entree_plain_pied"`
	EntreeAscenseur           *bool    `json:"entree_ascenseur"`
	EntreeMarches             *int     `json:"entree_marches"`
	EntreeMarchesSens         string   `json:"entree_marches_sens"`
	EntreeMarchesReperage     *bool    `json:"entree_marches_reperage"`
	EntreeMarchesMainCourante *bool    `json:"entree_marches_main_courante"`
	EntreeMarchesRampe        string   `json:"entree_marches_rampe"`
	EntreeDispositifAppel     *bool    `json:"entree_dispositif_appel"`
	EntreeDispositifAppelType []string `json:"entree_dispositif_appel_type"`
	EntreeBaliseSonore        *bool    `json:"entree_balise_sonore"`
	EntreeAideHumaine         *bool    `json:"entree_aide_humaine"`
	EntreeLargeurMini         *int     `json:"entree_largeur_mini"`
	EntreePMR                 *bool    `json:"entree_pmr"`
	EntreePMRInformations     string   `json:"entree_pmr_informations"`
	EntreePortePresence       *bool    `json:"entree_porte_presence"`
	EntreePorteManoeuvre      string   `json:"entree_porte_manoeuvre"`
	EntreePorteType           string   `json:"entree_porte_type"`

	// Accueil
	AccueilVisibilite                       *bool    `json:"accueil_visibilite"`
	AccueilPersonnels                       string   `json:"accueil_personnels"`
	AccueilAudiodescriptionPresence         *bool    `json:"accueil_audiodescription_presence"`
	AccueilAudiodescription                 []string `json:"accueil_audiodescription"`
	AccueilEquipementsMalentendantsPresence *bool    `json:"accueil_equipements_malentendants_presence"`
	AccueilEquipementsMalentendants         []string `json:"accueil_equipements_malentendants"`
	AccueilCheminementPlainPied             *bool    `json:"accueil_cheminement_plain_pied"`
	AccueilCheminementAscenseur             *bool    `json:"accueil_cheminement_ascenseur"`
	AccueilCheminementNombreMarches         *int     `json:"accueil_cheminement_nombre_marches"`
	AccueilCheminementSensMarches           string   `json:"accueil_cheminement_sens_marches"`
	AccueilCheminementReperageMarches       *bool    `json:"accueil_cheminement_reperage_marches"`
	AccueilCheminementMainCourante          *bool    `json:"accueil_cheminement_main_courante"`
	AccueilCheminementRampe                 string   `json:"accueil_cheminement_rampe"`
	AccueilRetrecissement                   *bool    `json:"accueil_retrecissement"`

	// Chambres accessibles
	AccueilChambreNombreAccessibles     *int  `json:"accueil_chambre_nombre_accessibles"`
	AccueilChambreDouchePlainPied       *bool `json:"accueil_chambre_douche_plain_pied"`
	AccueilChambreDoucheSiege           *bool `json:"accueil_chambre_douche_siege"`
	AccueilChambreDoucheBarreAppui      *bool `json:"accueil_chambre_douche_barre_appui"`
	AccueilChambreSanitairesBarreAppui  *bool `json:"accueil_chambre_sanitaires_barre_appui"`
	AccueilChambreSanitairesEspaceUsage *bool `json:"accueil_chambre_sanitaires_espace_usage"`
	AccueilChambreNumeroVisible         *bool `json:"accueil_chambre_numero_visible"`
	AccueilChambreEquipementAlerte      *bool `json:"accueil_chambre_equipement_alerte"`
	AccueilChambreAccompagnement        *bool `json:"accueil_chambre_accompagnement"`

	// Sanitaires
	SanitairesPresence *bool `json:"sanitaires_presence"`
	SanitairesAdaptes  *int  `json:"sanitaires_adaptes"`

	// Labels
	Labels                 []string `json:"labels"`
	LabelsFamillesHandicap []string `json:"labels_familles_handicap"`
	LabelsAutre            string   `json:"labels_autre"`

	// Metadata
	RegistreURL string `json:"registre_url"`
	Conformite  *bool  `json:"conformite"`
	Commentaire string `json:"commentaire"`

	CompletionRate float64   `json:"completion_rate"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FieldValue returns the value of a field by registry name, or nil for an
// unknown name. Implements schema.Record for warn predicates.
func (a *Accessibilite) FieldValue(name string) any {
	acc, ok := AccessorFor(name)
	if !ok {
		return nil
	}
	return acc.Get(a)
}

// ComputeCompletionRate returns the percentage of non-free-text accessibility
// fields carrying a value, rounded to two decimals. The store recomputes and
// persists it on every save.
func (a *Accessibilite) ComputeCompletionRate() float64 {
	total, filled := 0, 0
	for _, name := range schema.AccessibilityFieldNames() {
		f := schema.Get(name)
		if f.Kind == schema.KindText {
			continue
		}
		total++
		acc, _ := AccessorFor(name)
		if !ValueEmpty(f.Kind, acc.Get(a)) {
			filled++
		}
	}
	if total == 0 {
		return 0
	}
	return math.Round(float64(filled)/float64(total)*10000) / 100
}

// HasData reports whether at least one scored accessibility field is filled.
func (a *Accessibilite) HasData() bool {
	return a.ComputeCompletionRate() > 0
}

// Warnings returns the names of fields whose current value likely indicates
// an accessibility problem, in registry order. Display hint only.
func (a *Accessibilite) Warnings() []string {
	var out []string
	for _, name := range schema.FieldNames() {
		f := schema.Get(name)
		if f.WarnIf == nil {
			continue
		}
		acc, _ := AccessorFor(name)
		if f.WarnIf(acc.Get(a), a) {
			out = append(out, name)
		}
	}
	return out
}

// Clone returns a deep copy. Multi-value fields are copied so mutating the
// clone never aliases the original.
func (a *Accessibilite) Clone() *Accessibilite {
	if a == nil {
		return nil
	}
	out := &Accessibilite{ErpID: a.ErpID, CompletionRate: a.CompletionRate, UpdatedAt: a.UpdatedAt}
	for _, name := range schema.FieldNames() {
		acc, _ := AccessorFor(name)
		acc.Set(out, acc.Get(a))
	}
	return out
}
