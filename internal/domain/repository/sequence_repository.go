package repository

import "context"

// SequenceRepository emite consecutivos por (emisor, serie).
// Next incrementa y lee en una única operación atómica en el almacenamiento: nunca
// devuelve dos veces el mismo valor para la misma clave, sin importar la concurrencia.
type SequenceRepository interface {
	Next(ctx context.Context, issuerID, series string) (int64, error)
}
