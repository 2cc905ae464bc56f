package mssql

import (
	"errors"

	mssql "github.com/denisenkom/go-mssqldb"
)

// ErrorClass абстрактная категория, в которую переводится номер ошибки сервера
type ErrorClass int

const (
	// ClassUnknown номера нет в таблице перевода
	ClassUnknown ErrorClass = iota
	// ClassIdentity запись в IDENTITY колонку без IDENTITY_INSERT
	// или попытка ее обновить
	ClassIdentity
	// ClassConstraint нарушение ключа или ограничения
	ClassConstraint
	// ClassMissingObject неизвестная таблица или колонка
	ClassMissingObject
	// ClassTimeout таймаут блокировки или запроса
	ClassTimeout
	// ClassDeadlock сессия выбрана жертвой взаимоблокировки,
	// ее запрос откачен
	ClassDeadlock
)

// errorClasses статическая таблица перевода номеров ошибок SQL Server
// в абстрактные классы. После инициализации не изменяется.
var errorClasses = map[int32]ErrorClass{
	// Cannot update identity column '%.*ls'.
	8102: ClassIdentity,
	// Cannot insert explicit value for identity column in table '%.*ls'
	// when IDENTITY_INSERT is set to OFF.
	544: ClassIdentity,
	// Explicit value must be specified for identity column ... when
	// IDENTITY_INSERT is set to ON.
	545: ClassIdentity,

	2627: ClassConstraint, // уникальное ограничение / первичный ключ
	2601: ClassConstraint, // уникальный индекс
	547:  ClassConstraint, // внешний ключ / check
	515:  ClassConstraint, // NULL в NOT NULL колонку

	208: ClassMissingObject, // неверное имя объекта
	207: ClassMissingObject, // неверное имя колонки

	1222: ClassTimeout, // истек таймаут запроса блокировки

	1205: ClassDeadlock, // жертва взаимоблокировки
}

// Transient сообщает, может ли сбой не повториться при второй попытке
func (c ErrorClass) Transient() bool {
	return c == ClassTimeout || c == ClassDeadlock
}

// ErrorNumber извлекает номер ошибки SQL Server из err
func ErrorNumber(err error) (int32, bool) {
	var e mssql.Error
	if errors.As(err, &e) {
		return e.Number, true
	}
	var pe *mssql.Error
	if errors.As(err, &pe) && pe != nil {
		return pe.Number, true
	}
	return 0, false
}

// Classify переводит err через статическую таблицу
func Classify(err error) (ErrorClass, int32) {
	number, ok := ErrorNumber(err)
	if !ok {
		return ClassUnknown, 0
	}
	return errorClasses[number], number
}

