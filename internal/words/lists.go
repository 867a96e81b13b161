package words

import "math/rand"

// Built-in Spanish vocabulary used by the list and random word modes.
// Keys double as the category names a room config may reference.
var lists = map[string][]string{
	"general": {"CASA", "COCHE", "LIBRO", "MESA", "RELOJ", "VENTANA", "ESPEJO"},
	"animals": {"GATO", "PERRO", "ELEFANTE", "LEÓN", "TIGRE", "DELFÍN", "ÁGUILA"},
	"food":    {"PIZZA", "PASTA", "SUSHI", "TACOS", "PAELLA", "HAMBURGUESA", "HELADO"},
	"movies":  {"TITANIC", "AVATAR", "MATRIX", "INCEPTION", "JOKER", "FROZEN", "COCO"},
	"custom":  {"SOMBRA", "MISTERIO", "SECRETO", "AVENTURA", "MAGIA", "TESORO"},
}

// genericHints stand in for a real "similar word" in list/random modes;
// the impostor only learns the rough shape of the secret.
var genericHints = map[string]string{
	"general": "OBJETO",
	"animals": "ANIMAL",
	"food":    "COMIDA",
	"movies":  "PELÍCULA",
	"custom":  "ALGO",
}

var fallbackWords = []string{"MISTERIO", "AVENTURA", "TESORO", "MAGIA", "SOMBRA", "SECRETO"}

const fallbackHint = "CONCEPTO"

func Categories() []string {
	cats := make([]string, 0, len(lists))
	for cat := range lists {
		cats = append(cats, cat)
	}

	return cats
}

func RandomCategory() string {
	cats := Categories()
	return cats[rand.Intn(len(cats))]
}

// PickFrom returns a uniformly random word from the named category,
// falling back to "general" for unknown names.
func PickFrom(category string) string {
	list, ok := lists[category]
	if !ok {
		list = lists["general"]
	}

	return list[rand.Intn(len(list))]
}

func GenericHint(category string) string {
	if hint, ok := genericHints[category]; ok {
		return hint
	}

	return "COSA"
}

func fallbackWord() string {
	return fallbackWords[rand.Intn(len(fallbackWords))]
}
