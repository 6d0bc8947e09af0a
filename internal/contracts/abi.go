// Package contracts holds the ABIs of the deployed entities.
package contracts

const ProofOfMatchABI = `[
  {"type":"function","name":"createMatch","stateMutability":"nonpayable",
   "inputs":[{"name":"userA","type":"address"},{"name":"userB","type":"address"},{"name":"location","type":"string"}],
   "outputs":[{"name":"matchId","type":"uint256"}]},
  {"type":"event","name":"MatchCreated","anonymous":false,
   "inputs":[{"name":"matchId","type":"uint256","indexed":true},{"name":"userA","type":"address","indexed":true},{"name":"userB","type":"address","indexed":true}]}
]`

const MatchDataABI = `[
  {"type":"function","name":"recordInteraction","stateMutability":"nonpayable",
   "inputs":[{"name":"matchId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getMatchDetails","stateMutability":"view",
   "inputs":[{"name":"matchId","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple","components":[
     {"name":"userA","type":"address"},
     {"name":"userB","type":"address"},
     {"name":"location","type":"string"},
     {"name":"timestamp","type":"uint256"},
     {"name":"interactionCount","type":"uint256"},
     {"name":"level","type":"uint8"}]}]}
]`

const ExperienceNFTABI = `[
  {"type":"function","name":"mintExperience","stateMutability":"nonpayable",
   "inputs":[{"name":"recipient","type":"address"},{"name":"tokenURI","type":"string"}],
   "outputs":[{"name":"tokenId","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"transferFrom","stateMutability":"nonpayable",
   "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"ownerOf","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

const CommitmentVaultFactoryABI = `[
  {"type":"function","name":"createCommitmentVault","stateMutability":"nonpayable",
   "inputs":[{"name":"matchId","type":"uint256"},{"name":"nftAddress","type":"address"},{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"vaultAddress","type":"address"}]},
  {"type":"event","name":"VaultCreated","anonymous":false,
   "inputs":[
     {"name":"vaultAddress","type":"address","indexed":true},
     {"name":"userA","type":"address","indexed":true},
     {"name":"userB","type":"address","indexed":true},
     {"name":"matchId","type":"uint256","indexed":false},
     {"name":"nftAddress","type":"address","indexed":false},
     {"name":"tokenId","type":"uint256","indexed":false}]}
]`

const PresenceScoreABI = `[
  {"type":"function","name":"getPresenceScore","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const CommitmentVaultABI = `[
  {"type":"function","name":"approveRedemption","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"approveDissolution","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"executeRedemption","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"executeDissolution","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"getVaultInfo","stateMutability":"view","inputs":[],
   "outputs":[
     {"name":"userA","type":"address"},
     {"name":"userB","type":"address"},
     {"name":"isRedeemed","type":"bool"},
     {"name":"isDissolved","type":"bool"},
     {"name":"userARedeemApproval","type":"bool"},
     {"name":"userBRedeemApproval","type":"bool"},
     {"name":"userADissolveApproval","type":"bool"},
     {"name":"userBDissolveApproval","type":"bool"}]}
]`
