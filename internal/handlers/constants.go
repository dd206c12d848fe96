package handlers

const (
	ErrInvalidRequestBody  = "Requête invalide."
	ErrSessionNotFound     = "Session expirée ou invalide."
	ErrPerkAlreadyUsed     = "Cette action a déjà été utilisée pour ce patient."
	ErrTranscriptLimit     = "La consultation a atteint sa longueur maximale."
	ErrInvalidLevel        = "Niveau invalide."
	ErrUpstreamUnavailable = "Le service d'IA est indisponible. Réessayez."
	ErrInternalServerError = "Erreur interne du serveur."
	ErrTooManyRequests     = "Trop de requêtes. Réessayez dans un moment."
	ErrOriginNotAllowed    = "Origine non autorisée."
	ErrRefererNotAllowed   = "Referer non autorisé."

	maxBodyBytes = 16 << 20
)
