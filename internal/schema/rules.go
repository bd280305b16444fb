package schema

// conditionalRules ties each dependent field to its governing field. A
// dependent may only carry a value while its governor is in the required
// state; validation and import normalization both read this table.
var conditionalRules = []ConditionalRule{
	{
		Governing:     "transport_station_presence",
		RequiredState: true,
		Dependents:    []string{"transport_information"},
	},
	{
		Governing:     "stationnement_presence",
		RequiredState: true,
		Dependents:    []string{"stationnement_pmr"},
	},
	{
		Governing:     "stationnement_ext_presence",
		RequiredState: true,
		Dependents:    []string{"stationnement_ext_pmr"},
	},
	{
		Governing:     "cheminement_ext_presence",
		RequiredState: true,
		Dependents: []string{
			"cheminement_ext_terrain_stable",
			"cheminement_ext_plain_pied",
			"cheminement_ext_ascenseur",
			"cheminement_ext_nombre_marches",
			"cheminement_ext_sens_marches",
			"cheminement_ext_reperage_marches",
			"cheminement_ext_main_courante",
			"cheminement_ext_rampe",
			"cheminement_ext_pente_presence",
			"cheminement_ext_pente_degre_difficulte",
			"cheminement_ext_pente_longueur",
			"cheminement_ext_devers",
			"cheminement_ext_bande_guidage",
			"cheminement_ext_retrecissement",
		},
	},
	{
		Governing:     "cheminement_ext_plain_pied",
		RequiredState: false,
		Dependents: []string{
			"cheminement_ext_ascenseur",
			"cheminement_ext_nombre_marches",
			"cheminement_ext_sens_marches",
			"cheminement_ext_reperage_marches",
			"cheminement_ext_main_courante",
			"cheminement_ext_rampe",
		},
	},
	{
		Governing:     "cheminement_ext_pente_presence",
		RequiredState: true,
		Dependents: []string{
			"cheminement_ext_pente_degre_difficulte",
			"cheminement_ext_pente_longueur",
		},
	},
	{
		Governing:     "entree_vitree",
		RequiredState: true,
		Dependents:    []string{"entree_vitree_vitrophanie"},
	},
	{
		Governing:     "entree_plain_pied",
		RequiredState: false,
		Dependents: []string{
			"entree_ascenseur",
			"entree_marches",
			"entree_marches_sens",
			"entree_marches_reperage",
			"entree_marches_main_courante",
			"entree_marches_rampe",
		},
	},
	{
		Governing:     "entree_dispositif_appel",
		RequiredState: true,
		Dependents:    []string{"entree_dispositif_appel_type"},
	},
	{
		Governing:     "entree_pmr",
		RequiredState: true,
		Dependents:    []string{"entree_pmr_informations"},
	},
	{
		Governing:     "entree_porte_presence",
		RequiredState: true,
		Dependents: []string{
			"entree_porte_manoeuvre",
			"entree_porte_type",
		},
	},
	{
		Governing:     "accueil_audiodescription_presence",
		RequiredState: true,
		Dependents:    []string{"accueil_audiodescription"},
	},
	{
		Governing:     "accueil_equipements_malentendants_presence",
		RequiredState: true,
		Dependents:    []string{"accueil_equipements_malentendants"},
	},
	{
		Governing:     "accueil_cheminement_plain_pied",
		RequiredState: false,
		Dependents: []string{
			"accueil_cheminement_ascenseur",
			"accueil_cheminement_nombre_marches",
			"accueil_cheminement_sens_marches",
			"accueil_cheminement_reperage_marches",
			"accueil_cheminement_main_courante",
			"accueil_cheminement_rampe",
		},
	},
	{
		Governing:     "sanitaires_presence",
		RequiredState: true,
		Dependents:    []string{"sanitaires_adaptes"},
	},
	{
		Governing:     "labels",
		RequiredState: true,
		Dependents: []string{
			"labels_familles_handicap",
			"labels_autre",
		},
	},
}
