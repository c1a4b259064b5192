package validation

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

const (
	msgRequired = "Το πεδίο είναι υποχρεωτικό"
	msgInvalid  = "Μη έγκυρη τιμή"
)

// Message renders a Greek message for a single failed rule.
func Message(fe validator.FieldError) string {
	p := fe.Param()
	switch fe.Tag() {
	case "required", "required_if", "required_without", "required_with":
		return msgRequired
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("Πρέπει να έχει τουλάχιστον %s χαρακτήρες", p)
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("Επιλέξτε τουλάχιστον %s", p)
		default:
			return fmt.Sprintf("Η τιμή πρέπει να είναι τουλάχιστον %s", p)
		}
	case "max":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("Δεν μπορεί να ξεπερνά τους %s χαρακτήρες", p)
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("Μπορείτε να προσθέσετε έως %s", p)
		default:
			return fmt.Sprintf("Η τιμή δεν μπορεί να ξεπερνά το %s", p)
		}
	case "len":
		return fmt.Sprintf("Πρέπει να έχει ακριβώς %s χαρακτήρες", p)
	case "gte":
		return fmt.Sprintf("Η τιμή πρέπει να είναι τουλάχιστον %s", p)
	case "lte":
		return fmt.Sprintf("Η τιμή δεν μπορεί να ξεπερνά το %s", p)
	case "gt":
		if p == "0" {
			return "Επιλέξτε μια τιμή"
		}
		return fmt.Sprintf("Η τιμή πρέπει να είναι μεγαλύτερη από %s", p)
	case "email":
		return "Μη έγκυρη διεύθυνση email"
	case "url":
		return "Μη έγκυρος σύνδεσμος"
	case "oneof":
		return "Μη έγκυρη επιλογή"
	case "numeric":
		return "Επιτρέπονται μόνο αριθμοί"
	case "datetime":
		return "Μη έγκυρη ημερομηνία"
	case "nefield":
		return "Ο νέος κωδικός πρέπει να διαφέρει από τον τρέχοντα"
	case "username":
		return "Το όνομα χρήστη πρέπει να έχει 4-25 λατινικούς χαρακτήρες, αριθμούς, - ή _"
	case "greekphone":
		return "Μη έγκυρος αριθμός τηλεφώνου"
	case "slug":
		return "Επιτρέπονται μόνο πεζοί λατινικοί χαρακτήρες, αριθμοί και παύλες"
	}
	return msgInvalid
}
