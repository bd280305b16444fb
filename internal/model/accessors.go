package model

import (
	"sort"

	"github.com/acceslibre/erp-cli/internal/schema"
)

// Accessor is a typed getter/setter pair for one accessibility field. Values
// cross the boundary as the kind's carrier type: *bool, *int, string or
// []string. Ptr exposes the struct field's address for row scanning.
type Accessor struct {
	Kind schema.Kind
	Get  func(a *Accessibilite) any
	Set  func(a *Accessibilite, v any)
	Ptr  func(a *Accessibilite) any
}

// AccessorFor returns the accessor for a registry field name.
func AccessorFor(name string) (Accessor, bool) {
	acc, ok := accessors[name]
	return acc, ok
}

func boolField(ptr func(a *Accessibilite) **bool) Accessor {
	return Accessor{
		Kind: schema.KindBool,
		Get:  func(a *Accessibilite) any { return *ptr(a) },
		Set:  func(a *Accessibilite, v any) { *ptr(a) = toBoolPtr(v) },
		Ptr:  func(a *Accessibilite) any { return ptr(a) },
	}
}

func numberField(ptr func(a *Accessibilite) **int) Accessor {
	return Accessor{
		Kind: schema.KindNumber,
		Get:  func(a *Accessibilite) any { return *ptr(a) },
		Set:  func(a *Accessibilite, v any) { *ptr(a) = toIntPtr(v) },
		Ptr:  func(a *Accessibilite) any { return ptr(a) },
	}
}

func enumField(ptr func(a *Accessibilite) *string) Accessor {
	return Accessor{
		Kind: schema.KindEnum,
		Get:  func(a *Accessibilite) any { return *ptr(a) },
		Set:  func(a *Accessibilite, v any) { *ptr(a) = toString(v) },
		Ptr:  func(a *Accessibilite) any { return ptr(a) },
	}
}

func textField(ptr func(a *Accessibilite) *string) Accessor {
	acc := enumField(ptr)
	acc.Kind = schema.KindText
	return acc
}

func multiField(ptr func(a *Accessibilite) *[]string) Accessor {
	return Accessor{
		Kind: schema.KindMulti,
		Get:  func(a *Accessibilite) any { return *ptr(a) },
		Set:  func(a *Accessibilite, v any) { *ptr(a) = toStrings(v) },
		Ptr:  func(a *Accessibilite) any { return ptr(a) },
	}
}

// Conversions copy values so two records never share a pointer after a merge.

func toBoolPtr(v any) *bool {
	switch b := v.(type) {
	case *bool:
		if b == nil {
			return nil
		}
		c := *b
		return &c
	case bool:
		c := b
		return &c
	}
	return nil
}

func toIntPtr(v any) *int {
	switch n := v.(type) {
	case *int:
		if n == nil {
			return nil
		}
		c := *n
		return &c
	case int:
		c := n
		return &c
	}
	return nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toStrings(v any) []string {
	s, ok := v.([]string)
	if !ok || len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// ValueEmpty reports whether a carrier value counts as "no answer".
func ValueEmpty(kind schema.Kind, v any) bool {
	switch kind {
	case schema.KindBool:
		b, ok := v.(*bool)
		return !ok || b == nil
	case schema.KindNumber:
		n, ok := v.(*int)
		return !ok || n == nil
	case schema.KindEnum, schema.KindText:
		s, ok := v.(string)
		return !ok || s == ""
	case schema.KindMulti:
		s, ok := v.([]string)
		return !ok || len(s) == 0
	}
	return true
}

// ValueEqual compares two carrier values. Multi-value fields compare as sets.
func ValueEqual(kind schema.Kind, a, b any) bool {
	switch kind {
	case schema.KindBool:
		pa, _ := a.(*bool)
		pb, _ := b.(*bool)
		if pa == nil || pb == nil {
			return pa == nil && pb == nil
		}
		return *pa == *pb
	case schema.KindNumber:
		pa, _ := a.(*int)
		pb, _ := b.(*int)
		if pa == nil || pb == nil {
			return pa == nil && pb == nil
		}
		return *pa == *pb
	case schema.KindEnum, schema.KindText:
		return toString(a) == toString(b)
	case schema.KindMulti:
		sa, _ := a.([]string)
		sb, _ := b.([]string)
		if len(sa) != len(sb) {
			return false
		}
		as := append([]string(nil), sa...)
		bs := append([]string(nil), sb...)
		sort.Strings(as)
		sort.Strings(bs)
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return false
}

var accessors = map[string]Accessor{
	"transport_station_presence": boolField(func(a *Accessibilite) **bool { return &a.TransportStationPresence }),
	"transport_information":      textField(func(a *Accessibilite) *string { return &a.TransportInformation }),

	"stationnement_presence":     boolField(func(a *Accessibilite) **bool { return &a.StationnementPresence }),
	"stationnement_pmr":          boolField(func(a *Accessibilite) **bool { return &a.StationnementPMR }),
	"stationnement_ext_presence": boolField(func(a *Accessibilite) **bool { return &a.StationnementExtPresence }),
	"stationnement_ext_pmr":      boolField(func(a *Accessibilite) **bool { return &a.StationnementExtPMR }),

	"cheminement_ext_presence":               boolField(func(a *Accessibilite) **bool { return &a.CheminementExtPresence }),
	"cheminement_ext_terrain_stable":         boolField(func(a *Accessibilite) **bool { return &a.CheminementExtTerrainStable }),
	"cheminement_ext_plain_pied":             boolField(func(a *Accessibilite) **bool { return &a.CheminementExtPlainPied }),
	"cheminement_ext_ascenseur":              boolField(func(a *Accessibilite) **bool { return &a.CheminementExtAscenseur }),
	"cheminement_ext_nombre_marches":         numberField(func(a *Accessibilite) **int { return &a.CheminementExtNombreMarches }),
	"cheminement_ext_sens_marches":           enumField(func(a *Accessibilite) *string { return &a.CheminementExtSensMarches }),
	"cheminement_ext_reperage_marches":       boolField(func(a *Accessibilite) **bool { return &a.CheminementExtReperageMarches }),
	"cheminement_ext_main_courante":          boolField(func(a *Accessibilite) **bool { return &a.CheminementExtMainCourante }),
	"cheminement_ext_rampe":                  enumField(func(a *Accessibilite) *string { return &a.CheminementExtRampe }),
	"cheminement_ext_pente_presence":         boolField(func(a *Accessibilite) **bool { return &a.CheminementExtPentePresence }),
	"cheminement_ext_pente_degre_difficulte": enumField(func(a *Accessibilite) *string { return &a.CheminementExtPenteDegreDifficulte }),
	"cheminement_ext_pente_longueur":         enumField(func(a *Accessibilite) *string { return &a.CheminementExtPenteLongueur }),
	"cheminement_ext_devers":                 enumField(func(a *Accessibilite) *string { return &a.CheminementExtDevers }),
	"cheminement_ext_bande_guidage":          boolField(func(a *Accessibilite) **bool { return &a.CheminementExtBandeGuidage }),
	"cheminement_ext_retrecissement":         boolField(func(a *Accessibilite) **bool { return &a.CheminementExtRetrecissement }),

	"entree_reperage":              boolField(func(a *Accessibilite) **bool { return &a.EntreeReperage }),
	"entree_vitree":                boolField(func(a *Accessibilite) **bool { return &a.EntreeVitree }),
	"entree_vitree_vitrophanie":    boolField(func(a *Accessibilite) **bool { return &a.EntreeVitreeVitrophanie }),
	"entree_plain_pied":            boolField(func(a *Accessibilite) **bool { return &a.EntreePlainPied }),
	"entree_ascenseur":             boolField(func(a *Accessibilite) **bool { return &a.EntreeAscenseur }),
	"entree_marches":               numberField(func(a *Accessibilite) **int { return &a.EntreeMarches }),
	"entree_marches_sens":          enumField(func(a *Accessibilite) *string { return &a.EntreeMarchesSens }),
	"entree_marches_reperage":      boolField(func(a *Accessibilite) **bool { return &a.EntreeMarchesReperage }),
	"entree_marches_main_courante": boolField(func(a *Accessibilite) **bool { return &a.EntreeMarchesMainCourante }),
	"entree_marches_rampe":         enumField(func(a *Accessibilite) *string { return &a.EntreeMarchesRampe }),
	"entree_dispositif_appel":      boolField(func(a *Accessibilite) **bool { return &a.EntreeDispositifAppel }),
	"entree_dispositif_appel_type": multiField(func(a *Accessibilite) *[]string { return &a.EntreeDispositifAppelType }),
	"entree_balise_sonore":         boolField(func(a *Accessibilite) **bool { return &a.EntreeBaliseSonore }),
	"entree_aide_humaine":          boolField(func(a *Accessibilite) **bool { return &a.EntreeAideHumaine }),
	"entree_largeur_mini":          numberField(func(a *Accessibilite) **int { return &a.EntreeLargeurMini }),
	"entree_pmr":                   boolField(func(a *Accessibilite) **bool { return &a.EntreePMR }),
	"entree_pmr_informations":      textField(func(a *Accessibilite) *string { return &a.EntreePMRInformations }),
	"entree_porte_presence":        boolField(func(a *Accessibilite) **bool { return &a.EntreePortePresence }),
	"entree_porte_manoeuvre":       enumField(func(a *Accessibilite) *string { return &a.EntreePorteManoeuvre }),
	"entree_porte_type":            enumField(func(a *Accessibilite) *string { return &a.EntreePorteType }),

	"accueil_visibilite":                         boolField(func(a *Accessibilite) **bool { return &a.AccueilVisibilite }),
	"accueil_personnels":                         enumField(func(a *Accessibilite) *string { return &a.AccueilPersonnels }),
	"accueil_audiodescription_presence":          boolField(func(a *Accessibilite) **bool { return &a.AccueilAudiodescriptionPresence }),
	"accueil_audiodescription":                   multiField(func(a *Accessibilite) *[]string { return &a.AccueilAudiodescription }),
	"accueil_equipements_malentendants_presence": boolField(func(a *Accessibilite) **bool { return &a.AccueilEquipementsMalentendantsPresence }),
	"accueil_equipements_malentendants":          multiField(func(a *Accessibilite) *[]string { return &a.AccueilEquipementsMalentendants }),
	"accueil_cheminement_plain_pied":             boolField(func(a *Accessibilite) **bool { return &a.AccueilCheminementPlainPied }),
	"accueil_cheminement_ascenseur":              boolField(func(a *Accessibilite) **bool { return &a.AccueilCheminementAscenseur }),
	"accueil_cheminement_nombre_marches":         numberField(func(a *Accessibilite) **int { return &a.AccueilCheminementNombreMarches }),
	"accueil_cheminement_sens_marches":           enumField(func(a *Accessibilite) *string { return &a.AccueilCheminementSensMarches }),
	"accueil_cheminement_reperage_marches":       boolField(func(a *Accessibilite) **bool { return &a.AccueilCheminementReperageMarches }),
	"accueil_cheminement_main_courante":          boolField(func(a *Accessibilite) **bool { return &a.AccueilCheminementMainCourante }),
	"accueil_cheminement_rampe":                  enumField(func(a *Accessibilite) *string { return &a.AccueilCheminementRampe }),
	"accueil_retrecissement":                     boolField(func(a *Accessibilite) **bool { return &a.AccueilRetrecissement }),

	"accueil_chambre_nombre_accessibles":      numberField(func(a *Accessibilite) **int { return &a.AccueilChambreNombreAccessibles }),
	"accueil_chambre_douche_plain_pied":       boolField(func(a *Accessibilite) **bool { return &a.AccueilChambreDouchePlainPied }),
	"accueil_chambre_douche_siege":            boolField(func(a *Accessibilite) **bool { return &a.AccueilChambreDoucheSiege }),
	"accueil_chambre_douche_barre_appui":      boolField(func(a *Accessibilite) **bool { return &a.AccueilChambreDoucheBarreAppui }),
	"accueil_chambre_sanitaires_barre_appui":  boolField(func(a *Accessibilite) **bool { return &a.AccueilChambreSanitairesBarreAppui }),
	"accueil_chambre_sanitaires_espace_usage": boolField(func(a *Accessibilite) **bool { return &a.AccueilChambreSanitairesEspaceUsage }),
	"accueil_chambre_numero_visible":          boolField(func(a *Accessibilite) **bool { return &a.AccueilChambreNumeroVisible }),
	"accueil_chambre_equipement_alerte":       boolField(func(a *Accessibilite) **bool { return &a.AccueilChambreEquipementAlerte }),
	"accueil_chambre_accompagnement":          boolField(func(a *Accessibilite) **bool { return &a.AccueilChambreAccompagnement }),

	"sanitaires_presence": boolField(func(a *Accessibilite) **bool { return &a.SanitairesPresence }),
	"sanitaires_adaptes":  numberField(func(a *Accessibilite) **int { return &a.SanitairesAdaptes }),

	"labels":                   multiField(func(a *Accessibilite) *[]string { return &a.Labels }),
	"labels_familles_handicap": multiField(func(a *Accessibilite) *[]string { return &a.LabelsFamillesHandicap }),
	"labels_autre":             textField(func(a *Accessibilite) *string { return &a.LabelsAutre }),

	"registre_url": textField(func(a *Accessibilite) *string { return &a.RegistreURL }),
	"conformite":   boolField(func(a *Accessibilite) **bool { return &a.Conformite }),
	"commentaire":  textField(func(a *Accessibilite) *string { return &a.Commentaire }),
}
