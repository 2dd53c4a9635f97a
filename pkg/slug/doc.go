// Package slug turns display names into URL- and DNS-safe identifiers.
//
//	s := slug.Make("Clínica Ação & Saúde", slug.Replace(map[string]string{"&": "e"}))
//	// "clinica-acao-e-saude"
//
//	s, err := slug.Unique(ctx, s, 100, store.SlugExists)
package slug
