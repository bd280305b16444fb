package schema

// Shared enum vocabularies. These values are part of the export/import
// compatibility surface; renaming one without a migration breaks the
// open-data contract.
const (
	RampeAucune      = "aucune"
	RampeFixe        = "fixe"
	RampeAmovible    = "amovible"
	RampeAideHumaine = "aide humaine"

	SensMontant    = "montant"
	SensDescendant = "descendant"

	PenteLegere     = "légère"
	PenteImportante = "importante"

	PenteCourte  = "courte"
	PenteMoyenne = "moyenne"
	PenteLongue  = "longue"

	DeversAucun     = "aucun"
	DeversLeger     = "léger"
	DeversImportant = "important"

	PorteBattante   = "battante"
	PorteCoulissante = "coulissante"
	PorteTourniquet = "tourniquet"
	PorteTambour    = "tambour"

	PorteManuelle    = "manuelle"
	PorteAutomatique = "automatique"

	PersonnelAucun     = "aucun"
	PersonnelFormes    = "formés"
	PersonnelNonFormes = "non-formés"
)

var (
	rampeValues = []string{RampeAucune, RampeFixe, RampeAmovible, RampeAideHumaine}
	sensValues  = []string{SensMontant, SensDescendant}

	appelTypeValues = []string{"bouton", "interphone", "visiophone"}

	audiodescriptionValues = []string{
		"avec_équipement_permanent",
		"avec_équipement_occasionnel",
		"avec_application",
		"sans_équipement",
	}

	malentendantsValues = []string{"bim", "bmp", "lsf", "lpc", "sous-titrage", "autres"}

	labelValues = []string{"th", "dpt", "mobalib", "autre"}

	famillesHandicapValues = []string{"auditif", "mental", "moteur", "visuel"}
)

// Warn predicate helpers. Values arrive with the kind's carrier type.

func warnFalse(v any, _ Record) bool {
	b, ok := v.(*bool)
	return ok && b != nil && !*b
}

func warnTrue(v any, _ Record) bool {
	b, ok := v.(*bool)
	return ok && b != nil && *b
}

func warnEq(bad string) WarnFunc {
	return func(v any, _ Record) bool {
		s, ok := v.(string)
		return ok && s == bad
	}
}

func warnPositive(v any, _ Record) bool {
	n, ok := v.(*int)
	return ok && n != nil && *n > 0
}

func warnZero(v any, _ Record) bool {
	n, ok := v.(*int)
	return ok && n != nil && *n == 0
}

func warnBelow(min int) WarnFunc {
	return func(v any, _ Record) bool {
		n, ok := v.(*int)
		return ok && n != nil && *n < min
	}
}

// warnStepsWithoutRamp flags a step count when no usable ramp compensates.
func warnStepsWithoutRamp(rampField string) WarnFunc {
	return func(v any, rec Record) bool {
		n, ok := v.(*int)
		if !ok || n == nil || *n == 0 {
			return false
		}
		if rec == nil {
			return true
		}
		rampe, _ := rec.FieldValue(rampField).(string)
		return rampe == "" || rampe == RampeAucune
	}
}

var fields = []Field{
	// Transport
	{
		Name:            "transport_station_presence",
		Label:           "Proximité d'un arrêt de transport en commun",
		HelpText:        "Existe-t-il un arrêt de transport en commun à moins de 200 mètres ?",
		Section:         SectionTransport,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "transport_information",
		Label:           "Informations complémentaires",
		HelpText:        "Précisions sur l'arrêt: ligne, nom, distance.",
		Section:         SectionTransport,
		Kind:            KindText,
		IsAccessibility: true,
	},

	// Stationnement
	{
		Name:            "stationnement_presence",
		Label:           "Stationnement dans l'établissement",
		HelpText:        "Existe-t-il des places de stationnement au sein de la parcelle ?",
		Section:         SectionStationnement,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "stationnement_pmr",
		Label:           "Stationnement PMR dans l'établissement",
		HelpText:        "Existe-t-il des places réservées aux personnes à mobilité réduite ?",
		Section:         SectionStationnement,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "stationnement_ext_presence",
		Label:           "Stationnement à proximité",
		HelpText:        "Existe-t-il du stationnement à moins de 200 mètres ?",
		Section:         SectionStationnement,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "stationnement_ext_pmr",
		Label:           "Stationnement PMR à proximité",
		HelpText:        "Existe-t-il des places PMR à moins de 200 mètres ?",
		Section:         SectionStationnement,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},

	// Cheminement extérieur
	{
		Name:            "cheminement_ext_presence",
		Label:           "Chemin extérieur",
		HelpText:        "Y a-t-il un chemin extérieur entre le trottoir et l'entrée ?",
		Section:         SectionCheminementExt,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "cheminement_ext_terrain_stable",
		Label:           "Terrain stable",
		HelpText:        "Revêtement stable (béton, enrobé, pavés scellés).",
		Section:         SectionCheminementExt,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "cheminement_ext_plain_pied",
		Label:           "Chemin de plain-pied",
		HelpText:        "Sans marche ni ressaut supérieur à 2 cm.",
		Section:         SectionCheminementExt,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "cheminement_ext_ascenseur",
		Label:           "Ascenseur ou élévateur",
		Section:         SectionCheminementExt,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "cheminement_ext_nombre_marches",
		Label:           "Nombre de marches",
		HelpText:        "Nombre de marches du chemin extérieur.",
		Section:         SectionCheminementExt,
		Kind:            KindNumber,
		IsAccessibility: true,
		WarnIf:          warnStepsWithoutRamp("cheminement_ext_rampe"),
	},
	{
		Name:            "cheminement_ext_sens_marches",
		Label:           "Sens des marches",
		Section:         SectionCheminementExt,
		Kind:            KindEnum,
		IsAccessibility: true,
		EnumValues:      sensValues,
	},
	{
		Name:            "cheminement_ext_reperage_marches",
		Label:           "Repérage des marches",
		HelpText:        "Nez de marche contrasté et bande d'éveil de vigilance.",
		Section:         SectionCheminementExt,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "cheminement_ext_main_courante",
		Label:           "Main courante",
		Section:         SectionCheminementExt,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "cheminement_ext_rampe",
		Label:           "Rampe",
		Section:         SectionCheminementExt,
		Kind:            KindEnum,
		IsAccessibility: true,
		EnumValues:      rampeValues,
		WarnIf:          warnEq(RampeAucune),
	},
	{
		Name:            "cheminement_ext_pente_presence",
		Label:           "Pente",
		Section:         SectionCheminementExt,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnTrue,
	},
	{
		Name:            "cheminement_ext_pente_degre_difficulte",
		Label:           "Degré de difficulté de la pente",
		Section:         SectionCheminementExt,
		Kind:            KindEnum,
		IsAccessibility: true,
		EnumValues:      []string{PenteLegere, PenteImportante},
		WarnIf:          warnEq(PenteImportante),
	},
	{
		Name:            "cheminement_ext_pente_longueur",
		Label:           "Longueur de la pente",
		Section:         SectionCheminementExt,
		Kind:            KindEnum,
		IsAccessibility: true,
		EnumValues:      []string{PenteCourte, PenteMoyenne, PenteLongue},
		WarnIf:          warnEq(PenteLongue),
	},
	{
		Name:            "cheminement_ext_devers",
		Label:           "Dévers",
		HelpText:        "Inclinaison transversale du chemin.",
		Section:         SectionCheminementExt,
		Kind:            KindEnum,
		IsAccessibility: true,
		EnumValues:      []string{DeversAucun, DeversLeger, DeversImportant},
		WarnIf:          warnEq(DeversImportant),
	},
	{
		Name:            "cheminement_ext_bande_guidage",
		Label:           "Bande de guidage",
		Section:         SectionCheminementExt,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "cheminement_ext_retrecissement",
		Label:           "Rétrécissement du chemin",
		HelpText:        "Passage inférieur à 90 cm.",
		Section:         SectionCheminementExt,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnTrue,
	},

	// Entrée
	{
		Name:            "entree_reperage",
		Label:           "Entrée facilement repérable",
		Section:         SectionEntree,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "entree_vitree",
		Label:           "Entrée vitrée",
		Section:         SectionEntree,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "entree_vitree_vitrophanie",
		Label:           "Vitrophanie",
		HelpText:        "Éléments contrastés rendant le vitrage repérable.",
		Section:         SectionEntree,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "entree_plain_pied",
		Label:           "Entrée de plain-pied",
		Section:         SectionEntree,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "entree_ascenseur",
		Label:           "Ascenseur ou élévateur",
		Section:         SectionEntree,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "entree_marches",
		Label:           "Nombre de marches",
		Section:         SectionEntree,
		Kind:            KindNumber,
		IsAccessibility: true,
		WarnIf:          warnStepsWithoutRamp("entree_marches_rampe"),
	},
	{
		Name:            "entree_marches_sens",
		Label:           "Sens des marches",
		Section:         SectionEntree,
		Kind:            KindEnum,
		IsAccessibility: true,
		EnumValues:      sensValues,
	},
	{
		Name:            "entree_marches_reperage",
		Label:           "Repérage des marches",
		Section:         SectionEntree,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "entree_marches_main_courante",
		Label:           "Main courante",
		Section:         SectionEntree,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "entree_marches_rampe",
		Label:           "Rampe",
		Section:         SectionEntree,
		Kind:            KindEnum,
		IsAccessibility: true,
		EnumValues:      rampeValues,
		WarnIf:          warnEq(RampeAucune),
	},
	{
		Name:            "entree_dispositif_appel",
		Label:           "Dispositif d'appel",
		HelpText:        "Bouton, interphone ou visiophone à l'entrée.",
		Section:         SectionEntree,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "entree_dispositif_appel_type",
		Label:           "Type de dispositif d'appel",
		Section:         SectionEntree,
		Kind:            KindMulti,
		IsAccessibility: true,
		EnumValues:      appelTypeValues,
	},
	{
		Name:            "entree_balise_sonore",
		Label:           "Balise sonore",
		Section:         SectionEntree,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "entree_aide_humaine",
		Label:           "Aide humaine",
		HelpText:        "Possibilité de se faire aider par un membre du personnel.",
		Section:         SectionEntree,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "entree_largeur_mini",
		Label:           "Largeur minimale de l'entrée",
		HelpText:        "Largeur minimale en centimètres.",
		Section:         SectionEntree,
		Kind:            KindNumber,
		IsAccessibility: true,
		WarnIf:          warnBelow(80),
	},
	{
		Name:            "entree_pmr",
		Label:           "Entrée spécifique PMR",
		Section:         SectionEntree,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "entree_pmr_informations",
		Label:           "Informations sur l'entrée PMR",
		Section:         SectionEntree,
		Kind:            KindText,
		IsAccessibility: true,
	},
	{
		Name:            "entree_porte_presence",
		Label:           "Porte à l'entrée",
		Section:         SectionEntree,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "entree_porte_manoeuvre",
		Label:           "Manœuvre de la porte",
		Section:         SectionEntree,
		Kind:            KindEnum,
		IsAccessibility: true,
		EnumValues:      []string{PorteBattante, PorteCoulissante, PorteTourniquet, PorteTambour},
		WarnIf:          warnEq(PorteTourniquet),
	},
	{
		Name:            "entree_porte_type",
		Label:           "Type de porte",
		Section:         SectionEntree,
		Kind:            KindEnum,
		IsAccessibility: true,
		EnumValues:      []string{PorteManuelle, PorteAutomatique},
	},

	// Accueil
	{
		Name:            "accueil_visibilite",
		Label:           "Accueil visible depuis l'entrée",
		Section:         SectionAccueil,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "accueil_personnels",
		Label:           "Personnel d'accueil",
		Section:         SectionAccueil,
		Kind:            KindEnum,
		IsAccessibility: true,
		EnumValues:      []string{PersonnelAucun, PersonnelFormes, PersonnelNonFormes},
		WarnIf:          warnEq(PersonnelAucun),
	},
	{
		Name:            "accueil_audiodescription_presence",
		Label:           "Audiodescription",
		Section:         SectionAccueil,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "accueil_audiodescription",
		Label:           "Type d'audiodescription",
		Section:         SectionAccueil,
		Kind:            KindMulti,
		IsAccessibility: true,
		EnumValues:      audiodescriptionValues,
	},
	{
		Name:            "accueil_equipements_malentendants_presence",
		Label:           "Équipements pour personnes malentendantes",
		Section:         SectionAccueil,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "accueil_equipements_malentendants",
		Label:           "Liste des équipements",
		HelpText:        "Boucle à induction magnétique, LSF, LPC, sous-titrage.",
		Section:         SectionAccueil,
		Kind:            KindMulti,
		IsAccessibility: true,
		EnumValues:      malentendantsValues,
	},
	{
		Name:            "accueil_cheminement_plain_pied",
		Label:           "Chemin entre l'entrée et l'accueil de plain-pied",
		Section:         SectionAccueil,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "accueil_cheminement_ascenseur",
		Label:           "Ascenseur ou élévateur",
		Section:         SectionAccueil,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "accueil_cheminement_nombre_marches",
		Label:           "Nombre de marches",
		Section:         SectionAccueil,
		Kind:            KindNumber,
		IsAccessibility: true,
		WarnIf:          warnStepsWithoutRamp("accueil_cheminement_rampe"),
	},
	{
		Name:            "accueil_cheminement_sens_marches",
		Label:           "Sens des marches",
		Section:         SectionAccueil,
		Kind:            KindEnum,
		IsAccessibility: true,
		EnumValues:      sensValues,
	},
	{
		Name:            "accueil_cheminement_reperage_marches",
		Label:           "Repérage des marches",
		Section:         SectionAccueil,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "accueil_cheminement_main_courante",
		Label:           "Main courante",
		Section:         SectionAccueil,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "accueil_cheminement_rampe",
		Label:           "Rampe",
		Section:         SectionAccueil,
		Kind:            KindEnum,
		IsAccessibility: true,
		EnumValues:      rampeValues,
		WarnIf:          warnEq(RampeAucune),
	},
	{
		Name:            "accueil_retrecissement",
		Label:           "Rétrécissement du chemin",
		Section:         SectionAccueil,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnTrue,
	},

	// Chambres accessibles
	{
		Name:            "accueil_chambre_nombre_accessibles",
		Label:           "Nombre de chambres accessibles",
		Section:         SectionChambres,
		Kind:            KindNumber,
		IsAccessibility: true,
		WarnIf:          warnZero,
	},
	{
		Name:            "accueil_chambre_douche_plain_pied",
		Label:           "Douche de plain-pied",
		Section:         SectionChambres,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
		WarnIf:          warnFalse,
	},
	{
		Name:            "accueil_chambre_douche_siege",
		Label:           "Siège de douche",
		Section:         SectionChambres,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "accueil_chambre_douche_barre_appui",
		Label:           "Barre d'appui dans la douche",
		Section:         SectionChambres,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "accueil_chambre_sanitaires_barre_appui",
		Label:           "Barre d'appui dans les sanitaires",
		Section:         SectionChambres,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "accueil_chambre_sanitaires_espace_usage",
		Label:           "Espace d'usage dans les sanitaires",
		HelpText:        "Espace libre de 80 × 130 cm à côté de la cuvette.",
		Section:         SectionChambres,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "accueil_chambre_numero_visible",
		Label:           "Numéro de chambre visible et contrasté",
		Section:         SectionChambres,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "accueil_chambre_equipement_alerte",
		Label:           "Équipement d'alerte par flash lumineux",
		Section:         SectionChambres,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "accueil_chambre_accompagnement",
		Label:           "Accompagnement personnalisé",
		Section:         SectionChambres,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},

	// Sanitaires
	{
		Name:            "sanitaires_presence",
		Label:           "Sanitaires",
		Section:         SectionSanitaires,
		Kind:            KindBool,
		IsAccessibility: true,
		NullableBool:    true,
	},
	{
		Name:            "sanitaires_adaptes",
		Label:           "Nombre de sanitaires adaptés",
		Section:         SectionSanitaires,
		Kind:            KindNumber,
		IsAccessibility: true,
		WarnIf:          warnZero,
	},

	// Labels
	{
		Name:            "labels",
		Label:           "Labels d'accessibilité",
		Section:         SectionLabels,
		Kind:            KindMulti,
		IsAccessibility: true,
		EnumValues:      labelValues,
	},
	{
		Name:            "labels_familles_handicap",
		Label:           "Familles de handicap concernées",
		Section:         SectionLabels,
		Kind:            KindMulti,
		IsAccessibility: true,
		EnumValues:      famillesHandicapValues,
	},
	{
		Name:            "labels_autre",
		Label:           "Autre label",
		Section:         SectionLabels,
		Kind:            KindText,
		IsAccessibility: true,
	},

	// Registre
	{
		Name:     "registre_url",
		Label:    "Registre d'accessibilité",
		HelpText: "URL du registre d'accessibilité de l'établissement.",
		Section:  SectionRegistre,
		Kind:     KindText,
	},

	// Conformité
	{
		Name:         "conformite",
		Label:        "Conformité",
		HelpText:     "L'établissement est-il déclaré conforme ?",
		Section:      SectionConformite,
		Kind:         KindBool,
		NullableBool: true,
	},

	// Commentaire
	{
		Name:     "commentaire",
		Label:    "Commentaire libre",
		HelpText: "Toute information utile non couverte par le questionnaire.",
		Section:  SectionCommentaire,
		Kind:     KindText,
	},
}
