// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jcodagnone/territorios/spatial"
	"github.com/jcodagnone/territorios/ward"
)

var (
	// ErrRunNotFound no existe una corrida con ese identificador.
	ErrRunNotFound = errors.New("run not found")
	// ErrInvalidOptions la configuración de la segmentación es inválida.
	ErrInvalidOptions = errors.New("invalid options")
)

// DataError representa errores en los datos de entrada.
type DataError struct {
	Type ErrorType
	// Line es la línea del CSV, 0 si no aplica.
	Line    int
	Column  string
	Message string
	Err     error
}

// ErrorType define tipos de errores de datos.
type ErrorType int

const (
	// ErrorTypeUnknown error desconocido.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeEmpty el archivo no tiene encabezado.
	ErrorTypeEmpty
	// ErrorTypeMissingColumns faltan columnas obligatorias.
	ErrorTypeMissingColumns
	// ErrorTypeMalformed el CSV no se puede leer.
	ErrorTypeMalformed
	// ErrorTypeNotNumeric una celda numérica no es un número finito.
	ErrorTypeNotNumeric
	// ErrorTypeCoordinates latitud o longitud fuera de rango.
	ErrorTypeCoordinates
	// ErrorTypeDuplicateID identificador repetido.
	ErrorTypeDuplicateID
)

func (e *DataError) Error() string {
	msg := e.Message
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func isDataType(err error, t ErrorType) bool {
	var dErr *DataError
	if errors.As(err, &dErr) {
		return dErr.Type == t
	}

	return false
}

// IsDataError verifica si el error proviene de datos de entrada inválidos.
func IsDataError(err error) bool {
	var dErr *DataError

	return errors.As(err, &dErr)
}

// IsMissingColumns verifica si faltan columnas obligatorias.
func IsMissingColumns(err error) bool {
	return isDataType(err, ErrorTypeMissingColumns)
}

// IsNotNumeric verifica si una celda no pudo convertirse a número.
func IsNotNumeric(err error) bool {
	return isDataType(err, ErrorTypeNotNumeric)
}

// IsDuplicateID verifica si un identificador aparece más de una vez.
func IsDuplicateID(err error) bool {
	return isDataType(err, ErrorTypeDuplicateID)
}

// HTTPStatus clasifica un error en el código HTTP con el que se informa.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrRunNotFound):
		return http.StatusNotFound
	case ward.IsDisconnectedGraph(err):
		return http.StatusUnprocessableEntity
	case IsDataError(err),
		errors.Is(err, ErrInvalidOptions),
		errors.Is(err, spatial.ErrUnknownProjection),
		errors.Is(err, spatial.ErrInvalidCoordinates),
		ward.IsInvalidParameter(err),
		ward.IsInsufficientData(err),
		ward.IsNumeric(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
