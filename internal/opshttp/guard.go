package opshttp

import (
	"net"
	"net/http"

	"github.com/keithlinneman/sampleform/internal/apierror"
	"github.com/keithlinneman/sampleform/internal/log"
)

// requireNonPublicNetwork rejects callers whose peer address is public or
// unparseable. Forwarding headers are ignored; the admin port is never
// meant to sit behind the public proxy.
func requireNonPublicNetwork(L log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !nonPublicPeer(r.RemoteAddr) {
			ctx := r.Context()
			L.Warn(ctx, "admin request from public address rejected",
				"network.peer.address", r.RemoteAddr,
				"url.path", r.URL.Path,
			)
			apierror.Write(ctx, w, log.Nop(), apierror.HTTP(http.StatusForbidden, "Forbidden"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func nonPublicPeer(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
