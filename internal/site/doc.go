// Package site serves the public portfolio: home, gallery, photo pages,
// Markdown pages and the cart with checkout.
//
// Every page reads the layout and image settings once per request, so an
// admin change is visible on the next load. The cart lives in a cookie (see
// package cart); checkout prices items from the store.
package site
