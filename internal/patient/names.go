package patient

var maleFirstNames = []string{
	"Jean", "Pierre", "Michel", "Mohamed", "Patrick", "Olivier", "Thomas", "Marc", "Antoine", "Karim",
	"Nicolas", "François", "Youssef", "Bruno", "Julien", "Mathieu", "Lucas", "Hugo", "Romain", "Adrien",
}

var femaleFirstNames = []string{
	"Marie", "Nathalie", "Sophie", "Fatima", "Isabelle", "Christine", "Émilie", "Julie", "Camille", "Aïcha",
	"Laura", "Sandrine", "Aurélie", "Céline", "Mélanie", "Léa", "Chloé", "Manon", "Sarah", "Amira",
}

var lastNames = []string{
	"Martin", "Bernard", "Dubois", "Thomas", "Robert", "Petit", "Moreau", "Simon", "Laurent", "Lefebvre",
	"Michel", "Garcia", "David", "Bertrand", "Roux", "Fontaine", "Blanc", "Rousseau", "Vincent", "Morel",
	"Benali", "Diallo", "Nguyen", "Bouchard", "Leroy",
}

var (
	maleBuilds   = []string{"corpulence moyenne", "plutôt mince", "assez costaud", "légèrement en surpoids", "très mince"}
	femaleBuilds = []string{"corpulence moyenne", "plutôt mince", "silhouette sportive", "légèrement ronde", "très mince"}
	hairColors   = []string{"cheveux bruns", "cheveux noirs", "cheveux blonds", "cheveux roux", "cheveux grisonnants", "cheveux poivre et sel"}
	features     = []string{"lunettes", "barbe de trois jours", "sourire nerveux", "air fatigué", "regard fuyant", "yeux cernés", "teint pâle", "air soucieux"}
)

const (
	minAge = 18
	maxAge = 82
)
